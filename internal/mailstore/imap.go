package mailstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/models"
)

// IMAPStore implements Backend over an IMAP server. Folder ids are full
// mailbox names and message ids are UIDs. Tags are stored as IMAP keywords.
type IMAPStore struct {
	cfg  config.AccountConfig
	dial func() (*client.Client, error)
	// one session at a time per account
	mu sync.Mutex
}

// NewIMAPStore creates a store that opens a session per operation
func NewIMAPStore(cfg config.AccountConfig) *IMAPStore {
	s := &IMAPStore{cfg: cfg}
	s.dial = s.connect
	return s
}

func (s *IMAPStore) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.IMAPHost, s.cfg.IMAPPort)

	var (
		c   *client.Client
		err error
	)
	if s.cfg.IMAPTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(s.cfg.IMAPUser, s.cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	return c, nil
}

// withSession runs fn on a logged-in client and logs out afterwards
func (s *IMAPStore) withSession(ctx context.Context, fn func(c *client.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Logout(); err != nil {
			logrus.WithField("account", s.cfg.ID).Debugf("IMAP logout failed: %v", err)
		}
	}()
	return fn(c)
}

// FetchAccount lists every mailbox and returns the folder tree
func (s *IMAPStore) FetchAccount(ctx context.Context, accountID string) (models.Account, error) {
	var mailboxes []*imap.MailboxInfo
	err := s.withSession(ctx, func(c *client.Client) error {
		ch := make(chan *imap.MailboxInfo, 16)
		done := make(chan error, 1)
		go func() {
			done <- c.List("", "*", ch)
		}()
		for m := range ch {
			mailboxes = append(mailboxes, m)
		}
		if err := <-done; err != nil {
			return fmt.Errorf("failed to list mailboxes: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}

	name := s.cfg.Name
	if name == "" {
		name = s.cfg.IMAPUser
	}
	return models.Account{ID: accountID, Name: name, Folders: mailboxTree(mailboxes)}, nil
}

// mailboxTree builds the folder hierarchy from LIST responses
func mailboxTree(mailboxes []*imap.MailboxInfo) []models.Folder {
	delims := make(map[string]string, len(mailboxes))
	paths := make([]folderPath, 0, len(mailboxes))
	for _, m := range mailboxes {
		segs := splitPath(m.Name, m.Delimiter)
		paths = append(paths, folderPath{id: m.Name, segments: segs})
		delims[segs[0]] = m.Delimiter
	}
	return buildTree(paths, func(segs []string) string {
		return strings.Join(segs, delims[segs[0]])
	})
}

// MoveMessage moves msg out of its current mailbox into folderID
func (s *IMAPStore) MoveMessage(ctx context.Context, msg models.Message, folderID string) error {
	seqset, err := uidSet(msg.ID)
	if err != nil {
		return err
	}
	return s.withSession(ctx, func(c *client.Client) error {
		if _, err := c.Select(msg.Folder.FolderID, false); err != nil {
			return fmt.Errorf("failed to select %s: %w", msg.Folder.FolderID, err)
		}
		if err := c.UidMove(seqset, folderID); err != nil {
			return fmt.Errorf("failed to move message %s to %s: %w", msg.ID, folderID, err)
		}
		return nil
	})
}

// GetMessageTags returns the keywords set on msg
func (s *IMAPStore) GetMessageTags(ctx context.Context, msg models.Message) ([]string, error) {
	var tags []string
	err := s.withSession(ctx, func(c *client.Client) error {
		if _, err := c.Select(msg.Folder.FolderID, true); err != nil {
			return fmt.Errorf("failed to select %s: %w", msg.Folder.FolderID, err)
		}
		flags, err := fetchFlags(c, msg.ID)
		if err != nil {
			return err
		}
		tags = keywordsToTags(flags)
		return nil
	})
	return tags, err
}

// SetMessageTags makes the keywords on msg equal to tags. System flags are kept.
func (s *IMAPStore) SetMessageTags(ctx context.Context, msg models.Message, tags []string) error {
	seqset, err := uidSet(msg.ID)
	if err != nil {
		return err
	}
	return s.withSession(ctx, func(c *client.Client) error {
		if _, err := c.Select(msg.Folder.FolderID, false); err != nil {
			return fmt.Errorf("failed to select %s: %w", msg.Folder.FolderID, err)
		}
		flags, err := fetchFlags(c, msg.ID)
		if err != nil {
			return err
		}

		add, remove := diffKeywords(flags, tags)
		if len(remove) > 0 {
			if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.RemoveFlags, true), remove, nil); err != nil {
				return fmt.Errorf("failed to remove keywords: %w", err)
			}
		}
		if len(add) > 0 {
			if err := c.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), add, nil); err != nil {
				return fmt.Errorf("failed to add keywords: %w", err)
			}
		}
		return nil
	})
}

// ListMessages searches folderID for messages since the given time
func (s *IMAPStore) ListMessages(ctx context.Context, accountID, folderID string, since time.Time) ([]models.Message, error) {
	var out []models.Message
	err := s.withSession(ctx, func(c *client.Client) error {
		if _, err := c.Select(folderID, true); err != nil {
			return fmt.Errorf("failed to select %s: %w", folderID, err)
		}

		criteria := imap.NewSearchCriteria()
		if !since.IsZero() {
			criteria.Since = since
		}
		uids, err := c.UidSearch(criteria)
		if err != nil {
			return fmt.Errorf("failed to search messages: %w", err)
		}
		if len(uids) == 0 {
			return nil
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)
		messages := make(chan *imap.Message, len(uids))
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid}, messages)
		}()

		for m := range messages {
			msg := models.Message{
				ID:     strconv.FormatUint(uint64(m.Uid), 10),
				Folder: models.FolderRef{AccountID: accountID, FolderID: folderID},
				Tags:   keywordsToTags(m.Flags),
			}
			if m.Envelope != nil {
				msg.Subject = m.Envelope.Subject
			}
			out = append(out, msg)
		}

		if err := <-done; err != nil {
			return fmt.Errorf("failed to fetch messages: %w", err)
		}
		return nil
	})
	return out, err
}

// FetchText downloads msg without marking it seen and extracts its text
func (s *IMAPStore) FetchText(ctx context.Context, msg models.Message) (string, error) {
	seqset, err := uidSet(msg.ID)
	if err != nil {
		return "", err
	}

	var text string
	err = s.withSession(ctx, func(c *client.Client) error {
		if _, err := c.Select(msg.Folder.FolderID, true); err != nil {
			return fmt.Errorf("failed to select %s: %w", msg.Folder.FolderID, err)
		}

		section := &imap.BodySectionName{Peek: true}
		messages := make(chan *imap.Message, 1)
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(seqset, []imap.FetchItem{section.FetchItem(), imap.FetchUid}, messages)
		}()

		var body imap.Literal
		for m := range messages {
			if body == nil {
				body = m.GetBody(section)
			}
		}
		if err := <-done; err != nil {
			return fmt.Errorf("failed to fetch message: %w", err)
		}
		if body == nil {
			return fmt.Errorf("%w: uid %s", ErrMessageNotFound, msg.ID)
		}

		text, err = ExtractText(body)
		return err
	})
	return text, err
}

// Close is a no-op; sessions are closed after every operation
func (s *IMAPStore) Close() error {
	return nil
}

func uidSet(id string) (*imap.SeqSet, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return nil, fmt.Errorf("%w: invalid uid %q", ErrMessageNotFound, id)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	return seqset, nil
}

func fetchFlags(c *client.Client, id string) ([]string, error) {
	seqset, err := uidSet(id)
	if err != nil {
		return nil, err
	}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{imap.FetchFlags, imap.FetchUid}, messages)
	}()

	var (
		flags []string
		found bool
	)
	for m := range messages {
		flags = m.Flags
		found = true
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch flags: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: uid %s", ErrMessageNotFound, id)
	}
	return flags, nil
}

// Keywords are IMAP atoms that servers and the client library may
// lowercase. Tags are escaped so that only lowercase letters, digits, '-'
// and '.' appear literally; every other byte becomes '+' and two hex digits.
func tagToKeyword(tag string) string {
	var b strings.Builder
	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-', ch == '.':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "+%02x", ch)
		}
	}
	return b.String()
}

func keywordToTag(keyword string) string {
	var b strings.Builder
	for i := 0; i < len(keyword); i++ {
		if keyword[i] == '+' && i+2 < len(keyword) {
			if v, err := strconv.ParseUint(keyword[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(keyword[i])
	}
	return b.String()
}

func isSystemFlag(flag string) bool {
	return strings.HasPrefix(flag, "\\") || strings.HasPrefix(flag, "$")
}

func keywordsToTags(flags []string) []string {
	tags := []string{}
	for _, f := range flags {
		if isSystemFlag(f) {
			continue
		}
		tags = append(tags, keywordToTag(f))
	}
	return tags
}

// diffKeywords returns the keywords to add and remove so that the keyword
// set on a message equals tags. Flags are compared by their decoded tag, so
// keywords written by other clients keep their exact spelling.
func diffKeywords(flags []string, tags []string) (add, remove []interface{}) {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	have := make(map[string]bool, len(flags))
	for _, f := range flags {
		if isSystemFlag(f) {
			continue
		}
		tag := keywordToTag(f)
		if want[tag] {
			have[tag] = true
			continue
		}
		remove = append(remove, f)
	}
	for _, t := range tags {
		if !have[t] {
			add = append(add, tagToKeyword(t))
			have[t] = true
		}
	}
	return add, remove
}
