package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"menuvision/internal/client"
	"menuvision/internal/config"
)

type commandContext struct {
	serverFlag *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiClient builds a daemon client from the flags, falling back to the
// configured bind address and token.
func (c *commandContext) apiClient() (*client.Client, error) {
	server := ""
	if c.serverFlag != nil {
		server = strings.TrimSpace(*c.serverFlag)
	}
	token := ""
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}
	if server == "" || token == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		if server == "" {
			server = fmt.Sprintf("http://%s", cfg.Paths.APIBind)
		}
		if token == "" {
			token = cfg.Paths.APIToken
		}
	}
	return client.New(server, token), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
