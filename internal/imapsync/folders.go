package imapsync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
)

// FolderInfo is one selectable mailbox as reported by the server.
type FolderInfo struct {
	Name      string
	Path      string
	Delimiter string
}

// ListFolders lists the selectable folders on the server. Folders marked
// \Noselect are containers only and are skipped.
func ListFolders(c *Client) ([]FolderInfo, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.c.List("", "*", mailboxes)
	}()

	var folders []FolderInfo
	for m := range mailboxes {
		if hasAttribute(m.Attributes, imap.NoSelectAttr) {
			continue
		}

		name := m.Name
		if m.Delimiter != "" {
			if idx := strings.LastIndex(m.Name, m.Delimiter); idx >= 0 {
				name = m.Name[idx+len(m.Delimiter):]
			}
		}

		folders = append(folders, FolderInfo{
			Name:      name,
			Path:      m.Name,
			Delimiter: m.Delimiter,
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// SyncFolders mirrors the server's folder list into the cache and
// returns the cached rows. Parents are saved before children so the
// hierarchy links resolve in one pass. Local folders that no longer
// exist remotely are kept; their messages stay readable offline.
func SyncFolders(ctx context.Context, pool *pgxpool.Pool, c *Client, accountID int64) ([]*models.Folder, error) {
	infos, err := ListFolders(c)
	if err != nil {
		return nil, err
	}

	// Shallow paths first, so a parent's row exists when its children
	// are saved.
	sort.Slice(infos, func(i, j int) bool {
		return strings.Count(infos[i].Path, infos[i].Delimiter) < strings.Count(infos[j].Path, infos[j].Delimiter)
	})

	idByPath := make(map[string]int64, len(infos))
	var folders []*models.Folder

	for _, info := range infos {
		folder := &models.Folder{
			AccountID: accountID,
			Name:      info.Name,
			Path:      info.Path,
		}

		if info.Delimiter != "" {
			if idx := strings.LastIndex(info.Path, info.Delimiter); idx >= 0 {
				if parentID, ok := idByPath[info.Path[:idx]]; ok {
					folder.ParentID = &parentID
				}
			}
		}

		if err := db.SaveFolder(ctx, pool, folder); err != nil {
			return nil, err
		}

		idByPath[folder.Path] = folder.ID
		folders = append(folders, folder)
	}

	return folders, nil
}

func hasAttribute(attributes []string, attribute string) bool {
	for _, a := range attributes {
		if strings.EqualFold(a, attribute) {
			return true
		}
	}
	return false
}
