package models

// Account represents a mail account with its folder hierarchy
type Account struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Folders []Folder `json:"folders"`
}

// Folder is a node in an account's folder tree. Children are owned by their parent.
type Folder struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SubFolders []Folder `json:"sub_folders,omitempty"`
}

// FolderRef identifies the folder a message currently lives in
type FolderRef struct {
	AccountID string `json:"account_id"`
	FolderID  string `json:"folder_id"`
}

// Message represents a message selected for triage
type Message struct {
	ID      string    `json:"id"`
	Folder  FolderRef `json:"folder"`
	Subject string    `json:"subject"`
	// Tags is nil when the caller did not load them.
	Tags []string `json:"tags,omitempty"`
}

// HasTag reports whether the message carries the given tag
func (m Message) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
