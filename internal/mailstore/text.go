package mailstore

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/k3a/html2text"
	"github.com/sirupsen/logrus"
)

// maxNesting bounds recursion through nested multiparts and attached messages
const maxNesting = 32

type textParts struct {
	plain []string
	html  []string
}

// ExtractText returns the concatenated text/plain parts of a MIME message.
// HTML parts are converted to text only when no plain part exists.
func ExtractText(r io.Reader) (string, error) {
	entity, err := message.Read(r)
	if message.IsUnknownCharset(err) {
		logrus.Debugf("Unknown charset: %v", err)
	} else if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	var parts textParts
	if err := collect(entity, &parts, 0); err != nil {
		return "", err
	}

	if len(parts.plain) > 0 {
		return strings.TrimSpace(strings.Join(parts.plain, "\n")), nil
	}
	converted := make([]string, 0, len(parts.html))
	for _, h := range parts.html {
		converted = append(converted, html2text.HTML2Text(h))
	}
	return strings.TrimSpace(strings.Join(converted, "\n")), nil
}

func collect(entity *message.Entity, parts *textParts, depth int) error {
	if depth > maxNesting {
		return nil
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if message.IsUnknownCharset(err) {
				logrus.Debugf("Unknown charset in part: %v", err)
			} else if err != nil {
				return fmt.Errorf("failed to read part: %w", err)
			}
			if p == nil {
				continue
			}
			if err := collect(p, parts, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	mediaType, _, _ := entity.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}
	disposition, _, _ := entity.Header.ContentDisposition()
	if disposition == "attachment" && mediaType != "message/rfc822" {
		return nil
	}

	switch mediaType {
	case "text/plain", "text/html":
		content, err := io.ReadAll(entity.Body)
		if err != nil {
			return fmt.Errorf("failed to read part body: %w", err)
		}
		if mediaType == "text/plain" {
			parts.plain = append(parts.plain, string(content))
		} else {
			parts.html = append(parts.html, string(content))
		}
	case "message/rfc822":
		inner, err := message.Read(entity.Body)
		if message.IsUnknownCharset(err) {
			logrus.Debugf("Unknown charset in attached message: %v", err)
		} else if err != nil {
			logrus.Warnf("Skipping unreadable attached message: %v", err)
			return nil
		}
		return collect(inner, parts, depth+1)
	}
	return nil
}
