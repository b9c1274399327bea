package generation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"menuvision/internal/menu"
)

type stubGenerator struct {
	fail map[string]bool
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) ([]byte, error) {
	for name := range s.fail {
		if strings.Contains(prompt, name) {
			return nil, errors.New("rejected")
		}
	}
	return []byte("png-for:" + prompt), nil
}

func dishesNamed(names ...string) []menu.Dish {
	dishes := make([]menu.Dish, len(names))
	for i, name := range names {
		dishes[i] = menu.Dish{OriginalName: name}
	}
	return dishes
}

func TestStageWritesImagesAndStampsRefs(t *testing.T) {
	jobsDir := t.TempDir()
	stage, err := NewStage(&stubGenerator{}, jobsDir, PoolConfig{Width: 2}, nil)
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}

	dishes := dishesNamed("Pho Bo", "Goi Cuon", "Banh Mi")
	generated, err := stage.Run(context.Background(), "job-1", dishes, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if generated != 3 {
		t.Fatalf("expected 3 generated, got %d", generated)
	}
	for i, dish := range dishes {
		if dish.ImageRef == nil {
			t.Fatalf("dish %d missing image ref", i)
		}
		want := filepath.Join(jobsDir, "job-1", fmt.Sprintf("dish_%d.png", i))
		if *dish.ImageRef != want {
			t.Fatalf("dish %d ref = %q, want %q", i, *dish.ImageRef, want)
		}
		data, err := os.ReadFile(*dish.ImageRef)
		if err != nil {
			t.Fatalf("read image %d: %v", i, err)
		}
		if !strings.Contains(string(data), dish.OriginalName) {
			t.Fatalf("dish %d image does not match its prompt", i)
		}
	}
}

func TestStagePlacesPlaceholderOnFailure(t *testing.T) {
	stage, err := NewStage(&stubGenerator{fail: map[string]bool{"Goi Cuon": true}}, t.TempDir(), PoolConfig{Width: 2}, nil)
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}

	dishes := dishesNamed("Pho Bo", "Goi Cuon")
	generated, err := stage.Run(context.Background(), "job-2", dishes, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if generated != 1 {
		t.Fatalf("expected 1 generated, got %d", generated)
	}
	if dishes[1].ImageRef == nil || *dishes[1].ImageRef != menu.PlaceholderImageRef {
		t.Fatalf("failed dish must carry placeholder, got %+v", dishes[1].ImageRef)
	}
	if dishes[1].HasImage() {
		t.Fatal("placeholder must not count as an image")
	}
}

func TestStageReportsProgress(t *testing.T) {
	stage, err := NewStage(&stubGenerator{fail: map[string]bool{"Banh Mi": true}}, t.TempDir(), PoolConfig{Width: 1}, nil)
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}

	var progress []int
	dishes := dishesNamed("Pho Bo", "Goi Cuon", "Banh Mi")
	if _, err := stage.Run(context.Background(), "job-3", dishes, func(done, total int) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		progress = append(progress, done)
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Fatalf("unexpected progress callbacks: %v", progress)
	}
}

func TestStageEmptyDishList(t *testing.T) {
	stage, err := NewStage(&stubGenerator{}, t.TempDir(), PoolConfig{}, nil)
	if err != nil {
		t.Fatalf("NewStage: %v", err)
	}
	generated, err := stage.Run(context.Background(), "job-4", nil, nil)
	if err != nil || generated != 0 {
		t.Fatalf("empty run: generated=%d err=%v", generated, err)
	}
}

func TestBuildPromptUsesAvailableFields(t *testing.T) {
	dish := menu.Dish{
		OriginalName:   "Pho Bo",
		TranslatedName: menu.OptionalString("Beef Noodle Soup"),
		Description:    menu.OptionalString("Rice noodles in rich beef broth"),
		Ingredients:    []string{"beef", "rice noodles", "herbs"},
	}
	prompt := BuildPrompt(dish)
	for _, want := range []string{"Pho Bo", "Beef Noodle Soup", "beef broth", "rice noodles"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q: %s", want, prompt)
		}
	}

	bare := BuildPrompt(menu.Dish{OriginalName: "Mystery Dish"})
	if !strings.Contains(bare, "Mystery Dish") {
		t.Fatalf("bare prompt missing name: %s", bare)
	}
	if strings.Contains(bare, "Made with") {
		t.Fatalf("bare prompt should not mention ingredients: %s", bare)
	}
}
