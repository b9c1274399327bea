// Package services defines the shared error taxonomy and context annotation
// helpers used by the external collaborator clients and the pipeline stages.
package services
