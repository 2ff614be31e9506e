package mailstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-autosort-go/internal/models"
)

func TestMailboxTree(t *testing.T) {
	mailboxes := []*imap.MailboxInfo{
		{Name: "INBOX", Delimiter: "/"},
		{Name: "Financiën/Facturen", Delimiter: "/"},
		{Name: "Financiën", Delimiter: "/"},
		{Name: "Financiën/Belasting", Delimiter: "/"},
		{Name: "Archief.2023", Delimiter: "."},
	}

	tree := mailboxTree(mailboxes)
	require.Len(t, tree, 3)

	assert.Equal(t, "INBOX", tree[0].ID)
	assert.Nil(t, tree[0].SubFolders)

	fin := tree[1]
	assert.Equal(t, "Financiën", fin.ID)
	assert.Equal(t, "Financiën", fin.Name)
	require.Len(t, fin.SubFolders, 2)
	assert.Equal(t, "Financiën/Facturen", fin.SubFolders[0].ID)
	assert.Equal(t, "Facturen", fin.SubFolders[0].Name)
	assert.Equal(t, "Belasting", fin.SubFolders[1].Name)

	arch := tree[2]
	assert.Equal(t, "Archief", arch.ID)
	require.Len(t, arch.SubFolders, 1)
	assert.Equal(t, "Archief.2023", arch.SubFolders[0].ID)
	assert.Equal(t, "2023", arch.SubFolders[0].Name)
}

func TestKeywordRoundTrip(t *testing.T) {
	for _, tag := range []string{"Financiën", "Werk en Carrière", "plain", "a+b", "x_y"} {
		kw := tagToKeyword(tag)
		assert.NotContains(t, kw, " ")
		assert.Equal(t, kw, lower(kw), "keyword must survive lowercasing")
		assert.Equal(t, tag, keywordToTag(kw))
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func TestKeywordsToTagsSkipsSystemFlags(t *testing.T) {
	flags := []string{imap.SeenFlag, "$forwarded", tagToKeyword("Reizen")}
	assert.Equal(t, []string{"Reizen"}, keywordsToTags(flags))
	assert.Equal(t, []string{}, keywordsToTags([]string{imap.FlaggedFlag}))
}

func TestDiffKeywords(t *testing.T) {
	flags := []string{imap.SeenFlag, tagToKeyword("Old"), tagToKeyword("Keep")}

	add, remove := diffKeywords(flags, []string{"Keep", "New", "New"})
	assert.Equal(t, []interface{}{tagToKeyword("New")}, add)
	assert.Equal(t, []interface{}{tagToKeyword("Old")}, remove)

	add, remove = diffKeywords(flags, []string{"Old", "Keep"})
	assert.Empty(t, add)
	assert.Empty(t, remove)
}

func TestDiffKeywordsKeepsForeignKeywords(t *testing.T) {
	flags := []string{imap.SeenFlag, "work_item", "Urgent", "$Forwarded"}
	tags := append(keywordsToTags(flags), "Finance")

	add, remove := diffKeywords(flags, tags)
	assert.Equal(t, []interface{}{tagToKeyword("Finance")}, add)
	assert.Empty(t, remove)

	add, remove = diffKeywords(flags, []string{"Urgent"})
	assert.Empty(t, add)
	assert.Equal(t, []interface{}{"work_item"}, remove)
}

func TestUIDSet(t *testing.T) {
	_, err := uidSet("42")
	assert.NoError(t, err)

	for _, bad := range []string{"", "0", "abc", "99999999999"} {
		_, err := uidSet(bad)
		assert.ErrorIs(t, err, ErrMessageNotFound, bad)
	}
}

type fakeBackend struct {
	moved  []string
	closed bool
}

func (f *fakeBackend) FetchAccount(_ context.Context, id string) (models.Account, error) {
	return models.Account{ID: id}, nil
}
func (f *fakeBackend) MoveMessage(_ context.Context, msg models.Message, folderID string) error {
	f.moved = append(f.moved, msg.ID+"->"+folderID)
	return nil
}
func (f *fakeBackend) GetMessageTags(context.Context, models.Message) ([]string, error) {
	return []string{"t"}, nil
}
func (f *fakeBackend) SetMessageTags(context.Context, models.Message, []string) error { return nil }
func (f *fakeBackend) ListMessages(context.Context, string, string, time.Time) ([]models.Message, error) {
	return nil, nil
}
func (f *fakeBackend) FetchText(context.Context, models.Message) (string, error) { return "body", nil }
func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestRouterDispatchesByAccount(t *testing.T) {
	a, b := &fakeBackend{}, &fakeBackend{}
	r := NewRouter()
	r.Register("a", a)
	r.Register("b", b)
	r.Register("a", a)

	assert.Equal(t, []string{"a", "b"}, r.Accounts())

	msg := models.Message{ID: "1", Folder: models.FolderRef{AccountID: "b", FolderID: "INBOX"}}
	require.NoError(t, r.MoveMessage(context.Background(), msg, "Archive"))
	assert.Empty(t, a.moved)
	assert.Equal(t, []string{"1->Archive"}, b.moved)

	acc, err := r.FetchAccount(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", acc.ID)

	_, err = r.FetchAccount(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrUnknownAccount))

	_, err = r.GetMessageTags(context.Background(), models.Message{Folder: models.FolderRef{AccountID: "zzz"}})
	assert.ErrorIs(t, err, ErrUnknownAccount)

	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
