// Package registry stores registered clients and their face encodings.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

var (
	// ErrClientNotFound is returned when no client has the requested identity.
	ErrClientNotFound = errors.New("client not found")
	// ErrEmailTaken is returned when a client with the same email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnknownStatus is returned when a status update names a flag outside StatusKeys.
	ErrUnknownStatus = errors.New("unknown status flag")
)

// Care status flags tracked per client.
const (
	StatusCompleted = "completed"
	StatusRefused   = "refused"
	StatusPartial   = "partial"
	StatusPending   = "pending"
)

// StatusKeys lists every status flag in display order.
var StatusKeys = []string{StatusCompleted, StatusRefused, StatusPartial, StatusPending}

// Client is a registered resident or visitor.
type Client struct {
	ID           facematch.Identity `json:"id"`
	FirstName    string             `json:"first_name"`
	LastName     string             `json:"last_name"`
	Email        string             `json:"email"`
	Role         string             `json:"role"`
	UnitNumber   string             `json:"unit_number"`
	BuildingName string             `json:"building_name"`
	Status       map[string]bool    `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
}

// FullName joins first and last name.
func (c *Client) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Registry is the gallery source for matching.
type Registry interface {
	// Gallery returns every stored encoding of the given kind ordered by registration time, then identity.
	Gallery(ctx context.Context, kind facematch.Kind) ([]facematch.GalleryEntry, error)
	// SaveEncoding stores the encoding for a client, replacing any previous one.
	SaveEncoding(ctx context.Context, id facematch.Identity, enc facematch.Encoding) error
}

// Directory manages client records.
type Directory interface {
	// CreateClient stores a new client. ID and CreatedAt are assigned when empty.
	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id facematch.Identity) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	// SearchClients matches name against first, last and full name, ignoring case and diacritics.
	SearchClients(ctx context.Context, name string) ([]Client, error)
	// UpdateStatus merges the flags into the client's status. Unknown flags yield ErrUnknownStatus.
	UpdateStatus(ctx context.Context, id facematch.Identity, status map[string]bool) error
	// DeleteClient removes the client with its encoding and tasks.
	DeleteClient(ctx context.Context, id facematch.Identity) error
}

// Store is a full registry backend.
type Store interface {
	Registry
	Directory
	Tasks
}

// DefaultStatus is the status map given to newly registered clients: every flag cleared.
func DefaultStatus() map[string]bool {
	status := make(map[string]bool, len(StatusKeys))
	for _, key := range StatusKeys {
		status[key] = false
	}
	return status
}

// ValidateStatus rejects updates that are empty or name unknown flags.
func ValidateStatus(status map[string]bool) error {
	if len(status) == 0 {
		return fmt.Errorf("%w: no flags given", ErrUnknownStatus)
	}
	for key := range status {
		if !slices.Contains(StatusKeys, key) {
			return fmt.Errorf("%w: %q", ErrUnknownStatus, key)
		}
	}
	return nil
}

// CopyStatus returns a copy of a status map; nil stays nil.
func CopyStatus(status map[string]bool) map[string]bool {
	if status == nil {
		return nil
	}
	out := make(map[string]bool, len(status))
	for k, v := range status {
		out[k] = v
	}
	return out
}
