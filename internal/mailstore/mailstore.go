// Package mailstore abstracts the mail accounts the sorter operates on.
// Back ends exist for IMAP servers and the Gmail API; a Router dispatches
// by account id.
package mailstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/models"
)

var (
	// ErrUnknownAccount is returned for an account id with no back end
	ErrUnknownAccount = errors.New("unknown account")
	// ErrMessageNotFound is returned when the message no longer exists
	ErrMessageNotFound = errors.New("message not found")
)

// Store is the mutation surface used by the batch engine
type Store interface {
	FetchAccount(ctx context.Context, accountID string) (models.Account, error)
	MoveMessage(ctx context.Context, msg models.Message, folderID string) error
	GetMessageTags(ctx context.Context, msg models.Message) ([]string, error)
	SetMessageTags(ctx context.Context, msg models.Message, tags []string) error
}

// Reader lists messages and extracts their text for classification
type Reader interface {
	ListMessages(ctx context.Context, accountID, folderID string, since time.Time) ([]models.Message, error)
	FetchText(ctx context.Context, msg models.Message) (string, error)
}

// Backend is a single account's Store and Reader
type Backend interface {
	Store
	Reader
	Close() error
}

// Router dispatches every call to the back end registered for the account
type Router struct {
	backends map[string]Backend
	order    []string
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{backends: make(map[string]Backend)}
}

// NewFromConfig creates a back end for every configured account
func NewFromConfig(ctx context.Context, accounts []config.AccountConfig) (*Router, error) {
	r := NewRouter()
	for _, acc := range accounts {
		var (
			b   Backend
			err error
		)
		switch acc.Type {
		case config.AccountTypeGmail:
			b, err = NewGmailStore(ctx, acc)
		case config.AccountTypeIMAP, "":
			b = NewIMAPStore(acc)
		default:
			err = fmt.Errorf("unsupported account type %q", acc.Type)
		}
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to initialize account %s: %w", acc.ID, err)
		}
		r.Register(acc.ID, b)
		logrus.WithFields(logrus.Fields{"account": acc.ID, "type": acc.Type}).Info("Mail account registered")
	}
	return r, nil
}

// Register adds or replaces the back end for accountID
func (r *Router) Register(accountID string, b Backend) {
	if _, ok := r.backends[accountID]; !ok {
		r.order = append(r.order, accountID)
	}
	r.backends[accountID] = b
}

// Accounts returns registered account ids in registration order
func (r *Router) Accounts() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Router) backend(accountID string) (Backend, error) {
	b, ok := r.backends[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	return b, nil
}

// FetchAccount returns the account with its folder tree
func (r *Router) FetchAccount(ctx context.Context, accountID string) (models.Account, error) {
	b, err := r.backend(accountID)
	if err != nil {
		return models.Account{}, err
	}
	return b.FetchAccount(ctx, accountID)
}

// MoveMessage moves msg into folderID
func (r *Router) MoveMessage(ctx context.Context, msg models.Message, folderID string) error {
	b, err := r.backend(msg.Folder.AccountID)
	if err != nil {
		return err
	}
	return b.MoveMessage(ctx, msg, folderID)
}

// GetMessageTags returns the tags currently on msg
func (r *Router) GetMessageTags(ctx context.Context, msg models.Message) ([]string, error) {
	b, err := r.backend(msg.Folder.AccountID)
	if err != nil {
		return nil, err
	}
	return b.GetMessageTags(ctx, msg)
}

// SetMessageTags replaces the tags on msg
func (r *Router) SetMessageTags(ctx context.Context, msg models.Message, tags []string) error {
	b, err := r.backend(msg.Folder.AccountID)
	if err != nil {
		return err
	}
	return b.SetMessageTags(ctx, msg, tags)
}

// ListMessages lists messages in folderID received after since
func (r *Router) ListMessages(ctx context.Context, accountID, folderID string, since time.Time) ([]models.Message, error) {
	b, err := r.backend(accountID)
	if err != nil {
		return nil, err
	}
	return b.ListMessages(ctx, accountID, folderID, since)
}

// FetchText returns the plain-text content of msg
func (r *Router) FetchText(ctx context.Context, msg models.Message) (string, error) {
	b, err := r.backend(msg.Folder.AccountID)
	if err != nil {
		return "", err
	}
	return b.FetchText(ctx, msg)
}

// Close closes every back end
func (r *Router) Close() error {
	var errs []error
	for _, id := range r.order {
		if err := r.backends[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// folderPath is one mailbox or label expressed as path segments
type folderPath struct {
	id       string
	segments []string
}

type treeNode struct {
	folder   models.Folder
	children []*treeNode
	index    map[string]*treeNode
}

// buildTree turns flat paths into a folder hierarchy. Missing parents are
// created with placeholderID; sibling order follows the input order.
func buildTree(paths []folderPath, placeholderID func(segments []string) string) []models.Folder {
	root := &treeNode{index: make(map[string]*treeNode)}
	for _, p := range paths {
		cur := root
		for i, seg := range p.segments {
			child, ok := cur.index[seg]
			if !ok {
				child = &treeNode{
					folder: models.Folder{ID: placeholderID(p.segments[:i+1]), Name: seg},
					index:  make(map[string]*treeNode),
				}
				cur.index[seg] = child
				cur.children = append(cur.children, child)
			}
			if i == len(p.segments)-1 {
				child.folder.ID = p.id
			}
			cur = child
		}
	}
	return flatten(root.children)
}

func flatten(nodes []*treeNode) []models.Folder {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]models.Folder, len(nodes))
	for i, n := range nodes {
		out[i] = n.folder
		out[i].SubFolders = flatten(n.children)
	}
	return out
}

func splitPath(name, delim string) []string {
	if delim == "" {
		return []string{name}
	}
	var segs []string
	for _, s := range strings.Split(name, delim) {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return []string{name}
	}
	return segs
}
