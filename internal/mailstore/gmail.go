package mailstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/models"
)

const gmailInbox = "INBOX"

// GmailStore implements Backend over the Gmail API. Folders and tags are
// both user labels; folder ids are label ids.
type GmailStore struct {
	service   *gmail.Service
	userEmail string
	name      string

	mu     sync.Mutex
	labels map[string]string // name -> id
	names  map[string]string // id -> name
}

// OAuthConfig returns the OAuth2 client for a Gmail account. redirectURL
// is only needed when obtaining a new refresh token.
func OAuthConfig(cfg config.AccountConfig, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailModifyScope, gmail.GmailLabelsScope},
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
	}
}

// NewGmailStore authenticates with the account's refresh token
func NewGmailStore(ctx context.Context, cfg config.AccountConfig) (*GmailStore, error) {
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	tokenSource := OAuthConfig(cfg, "").TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return NewGmailStoreWithService(service, cfg), nil
}

// NewGmailStoreWithService wraps an existing Gmail service
func NewGmailStoreWithService(service *gmail.Service, cfg config.AccountConfig) *GmailStore {
	user := cfg.UserEmail
	if user == "" {
		user = "me"
	}
	name := cfg.Name
	if name == "" {
		name = user
	}
	return &GmailStore{service: service, userEmail: user, name: name}
}

// refreshLabels reloads the user label cache and returns the user labels in API order
func (s *GmailStore) refreshLabels(ctx context.Context) ([]*gmail.Label, error) {
	resp, err := s.service.Users.Labels.List(s.userEmail).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	var user []*gmail.Label
	byName := make(map[string]string, len(resp.Labels))
	byID := make(map[string]string, len(resp.Labels))
	for _, l := range resp.Labels {
		if l.Type != "user" {
			continue
		}
		user = append(user, l)
		byName[l.Name] = l.Id
		byID[l.Id] = l.Name
	}

	s.mu.Lock()
	s.labels, s.names = byName, byID
	s.mu.Unlock()
	return user, nil
}

func (s *GmailStore) labelMaps(ctx context.Context) (map[string]string, map[string]string, error) {
	s.mu.Lock()
	byName, byID := s.labels, s.names
	s.mu.Unlock()
	if byName != nil {
		return byName, byID, nil
	}
	if _, err := s.refreshLabels(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labels, s.names, nil
}

// FetchAccount returns the user label hierarchy as folders
func (s *GmailStore) FetchAccount(ctx context.Context, accountID string) (models.Account, error) {
	labels, err := s.refreshLabels(ctx)
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{ID: accountID, Name: s.name, Folders: labelTree(labels)}, nil
}

func labelTree(labels []*gmail.Label) []models.Folder {
	ids := make(map[string]string, len(labels))
	paths := make([]folderPath, 0, len(labels))
	for _, l := range labels {
		ids[l.Name] = l.Id
		paths = append(paths, folderPath{id: l.Id, segments: splitPath(l.Name, "/")})
	}
	return buildTree(paths, func(segs []string) string {
		name := strings.Join(segs, "/")
		if id, ok := ids[name]; ok {
			return id
		}
		return name
	})
}

// MoveMessage adds the target label and removes INBOX and the source label
func (s *GmailStore) MoveMessage(ctx context.Context, msg models.Message, folderID string) error {
	remove := []string{gmailInbox}
	if src := msg.Folder.FolderID; src != "" && src != gmailInbox && src != folderID {
		remove = append(remove, src)
	}
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{folderID},
		RemoveLabelIds: remove,
	}
	if _, err := s.service.Users.Messages.Modify(s.userEmail, msg.ID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to move message %s: %w", msg.ID, notFound(err))
	}
	return nil
}

// GetMessageTags returns the names of the user labels on msg
func (s *GmailStore) GetMessageTags(ctx context.Context, msg models.Message) ([]string, error) {
	_, byID, err := s.labelMaps(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.service.Users.Messages.Get(s.userEmail, msg.ID).Format("minimal").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", msg.ID, notFound(err))
	}
	tags := []string{}
	for _, id := range m.LabelIds {
		if name, ok := byID[id]; ok {
			tags = append(tags, name)
		}
	}
	return tags, nil
}

// SetMessageTags makes the user labels on msg equal to tags, creating
// labels that do not exist yet
func (s *GmailStore) SetMessageTags(ctx context.Context, msg models.Message, tags []string) error {
	current, err := s.GetMessageTags(ctx, msg)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	have := make(map[string]bool, len(current))
	req := &gmail.ModifyMessageRequest{}

	byName, _, err := s.labelMaps(ctx)
	if err != nil {
		return err
	}
	for _, name := range current {
		have[name] = true
		if !want[name] {
			req.RemoveLabelIds = append(req.RemoveLabelIds, byName[name])
		}
	}
	for _, t := range tags {
		if have[t] {
			continue
		}
		id, err := s.ensureLabel(ctx, t)
		if err != nil {
			return err
		}
		req.AddLabelIds = append(req.AddLabelIds, id)
		have[t] = true
	}

	if len(req.AddLabelIds) == 0 && len(req.RemoveLabelIds) == 0 {
		return nil
	}
	if _, err := s.service.Users.Messages.Modify(s.userEmail, msg.ID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update labels on %s: %w", msg.ID, notFound(err))
	}
	return nil
}

func (s *GmailStore) ensureLabel(ctx context.Context, name string) (string, error) {
	byName, _, err := s.labelMaps(ctx)
	if err != nil {
		return "", err
	}
	if id, ok := byName[name]; ok {
		return id, nil
	}

	label, err := s.service.Users.Labels.Create(s.userEmail, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", name, err)
	}
	logrus.WithField("label", name).Info("Created Gmail label")

	// maps handed out by labelMaps are never mutated
	s.mu.Lock()
	byName = make(map[string]string, len(s.labels)+1)
	byID := make(map[string]string, len(s.names)+1)
	for k, v := range s.labels {
		byName[k] = v
	}
	for k, v := range s.names {
		byID[k] = v
	}
	byName[name] = label.Id
	byID[label.Id] = name
	s.labels, s.names = byName, byID
	s.mu.Unlock()
	return label.Id, nil
}

// ListMessages lists messages carrying folderID received after since
func (s *GmailStore) ListMessages(ctx context.Context, accountID, folderID string, since time.Time) ([]models.Message, error) {
	call := s.service.Users.Messages.List(s.userEmail).LabelIds(folderID).Context(ctx)
	if !since.IsZero() {
		call = call.Q(fmt.Sprintf("after:%d", since.Unix()))
	}

	var out []models.Message
	err := call.Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, ref := range resp.Messages {
			m, err := s.service.Users.Messages.Get(s.userEmail, ref.Id).
				Format("metadata").MetadataHeaders("Subject").Context(ctx).Do()
			if err != nil {
				logrus.Warnf("Failed to get message %s: %v", ref.Id, err)
				continue
			}
			msg := models.Message{
				ID:     m.Id,
				Folder: models.FolderRef{AccountID: accountID, FolderID: folderID},
			}
			if m.Payload != nil {
				for _, h := range m.Payload.Headers {
					if strings.EqualFold(h.Name, "Subject") {
						msg.Subject = h.Value
					}
				}
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

// FetchText downloads the raw message and extracts its text
func (s *GmailStore) FetchText(ctx context.Context, msg models.Message) (string, error) {
	m, err := s.service.Users.Messages.Get(s.userEmail, msg.ID).Format("raw").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get message %s: %w", msg.ID, notFound(err))
	}
	raw, err := base64.URLEncoding.DecodeString(m.Raw)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(m.Raw)
		if err != nil {
			return "", fmt.Errorf("failed to decode message %s: %w", msg.ID, err)
		}
	}
	return ExtractText(bytes.NewReader(raw))
}

// Close is a no-op for the Gmail API
func (s *GmailStore) Close() error {
	return nil
}

func notFound(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrMessageNotFound, err)
	}
	return err
}
