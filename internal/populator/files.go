package populator

import (
	"context"
	"fmt"
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
)

// AddFiles downloads each file, uploads it and links it into its folder.
// A failing file is logged and reported as an issue; the batch continues.
func (p *Populator) AddFiles(ctx context.Context, matterID string, files []manifest.FileRef) []string {
	if len(files) == 0 {
		return nil
	}
	log := p.log.WithContext(ctx)

	folders, err := p.client.ListFolders(ctx, matterID)
	if err != nil {
		log.Error("list matter folders failed", "error", err)
	}

	var issues []string
	for _, f := range files {
		content, err := p.downloader.Download(ctx, f.URL)
		if err != nil {
			log.Error("file download failed", "file", f.Name, "error", err)
			issues = append(issues, fmt.Sprintf("File %s could not be downloaded and was not attached.", f.Name))
			continue
		}

		uploadID, err := p.client.UploadDocument(ctx, f.Name, content)
		if err != nil {
			log.Error("file upload failed", "file", f.Name, "error", err)
			issues = append(issues, fmt.Sprintf("File %s could not be uploaded and was not attached.", f.Name))
			continue
		}

		name := f.Folder
		if name == "" {
			name = p.policy.DocumentFolder
		}
		folder, ok := resolveFolder(folders, name, f.ParentFolder)
		if !ok {
			log.Error("document folder not found", "file", f.Name, "folder", name, "parent", f.ParentFolder)
			issues = append(issues, fmt.Sprintf("Folder %s was not found, so file %s was uploaded but not filed.", name, f.Name))
			continue
		}

		if err := p.client.LinkDocument(ctx, matterID, matter.DocumentLink{UploadID: uploadID, FolderID: folder.ID, Name: f.Name}); err != nil {
			log.Error("document link failed", "file", f.Name, "folder_id", folder.ID, "error", err)
			issues = append(issues, fmt.Sprintf("File %s was uploaded but could not be filed.", f.Name))
		}
	}
	return issues
}

// resolveFolder finds name at the top level, or one level below parent when
// parent is set.
func resolveFolder(folders []matter.Folder, name, parent string) (matter.Folder, bool) {
	parentID := ""
	if parent != "" {
		p, ok := findFolder(folders, parent, "")
		if !ok {
			return matter.Folder{}, false
		}
		parentID = p.ID
	}
	return findFolder(folders, name, parentID)
}

func findFolder(folders []matter.Folder, name, parentID string) (matter.Folder, bool) {
	for _, f := range folders {
		if f.ParentID == parentID && strings.EqualFold(strings.TrimSpace(f.Name), strings.TrimSpace(name)) {
			return f, true
		}
	}
	return matter.Folder{}, false
}
