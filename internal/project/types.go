// Package project defines the file and project records shared by the workspace core,
// the persistence backends and the HTTP API.
package project

import (
	"time"
	"unicode/utf8"
)

// FileType is the logical document type of a project file.
type FileType string

const (
	// FileTypeTex is a LaTeX source document.
	FileTypeTex FileType = "tex"
	// FileTypeBib is a BibTeX bibliography.
	FileTypeBib FileType = "bib"
)

// MainFileName is the well-known main document of every project.
const MainFileName = "main.tex"

// File is a persisted project file.
type File struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	FileType    FileType   `json:"file_type"`
	Content     string     `json:"content"`
	Path        string     `json:"path"`
	StoragePath string     `json:"storage_path"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	Size        int64      `json:"size"`
}

// Project is a persisted project header.
type Project struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// ProjectWithFiles is a project together with its flat file list.
type ProjectWithFiles struct {
	Project Project `json:"project"`
	Files   []File  `json:"files"`
}

// FileSpec describes a file to be created.
type FileSpec struct {
	Name     string   `json:"name"`
	FileType FileType `json:"file_type"`
	Content  string   `json:"content"`
}

// FilePath returns the path-like location of name inside a project.
func FilePath(name string) string {
	return "/" + name
}

// StoragePath returns the object key a file's content is mirrored under.
func StoragePath(projectID, name string) string {
	return projectID + "/" + name
}

// ContentSize returns the size recorded for content.
func ContentSize(content string) int64 {
	return int64(len(content))
}

// Renamed returns a copy of f carrying newName and its derived path metadata.
func (f File) Renamed(newName string, at time.Time) File {
	f.Name = newName
	f.Path = FilePath(newName)
	f.StoragePath = StoragePath(f.ProjectID, newName)
	f.UpdatedAt = &at
	return f
}

// WithContent returns a copy of f carrying content as its persisted text.
func (f File) WithContent(content string, at time.Time) File {
	f.Content = content
	f.Size = ContentSize(content)
	f.UpdatedAt = &at
	return f
}

// IDs returns the ids of files in order.
func IDs(files []File) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}

// Find returns the index of the file with id, or -1.
func Find(files []File, id string) int {
	for i := range files {
		if files[i].ID == id {
			return i
		}
	}
	return -1
}

// FindByName returns the index of the file named name, or -1.
func FindByName(files []File, name string) int {
	for i := range files {
		if files[i].Name == name {
			return i
		}
	}
	return -1
}

// Stats summarizes a document for status bars.
type Stats struct {
	Lines int
	Words int
	Chars int
}

// ComputeStats counts lines, words and characters of content.
func ComputeStats(content string) Stats {
	st := Stats{Lines: 1, Chars: utf8.RuneCountInString(content)}
	inWord := false
	for _, r := range content {
		if r == '\n' {
			st.Lines++
		}
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			inWord = false
		default:
			if !inWord {
				st.Words++
			}
			inWord = true
		}
	}
	return st
}
