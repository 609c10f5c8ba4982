package project

import (
	"strings"
)

const maxFileNameLen = 255

// DefaultContent returns the initial text of a new file of fileType.
func DefaultContent(name string, fileType FileType) string {
	switch fileType {
	case FileTypeTex:
		return "% " + name + "\n\n"
	case FileTypeBib:
		return "% Bibliography file: " + name + "\n\n"
	default:
		return ""
	}
}

// DefaultMainTexContent is the article template seeded into every new project.
const DefaultMainTexContent = `\documentclass{article}
\usepackage[utf8]{inputenc}
\usepackage{amsmath}
\usepackage{amsfonts}
\usepackage{amssymb}
\usepackage{graphicx}

\title{Your Document Title}
\author{Your Name}
\date{\today}

\begin{document}

\maketitle

\section{Introduction}

Start writing your document here.

\end{document}
`

// NormalizeFileName trims name and checks it against naming rules.
func NormalizeFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", NewError(ErrCodeValidation, "file name is required")
	}
	if len(name) > maxFileNameLen {
		return "", NewError(ErrCodeValidation, "file name exceeds max length")
	}
	if name == "." || name == ".." {
		return "", NewError(ErrCodeValidation, "file name must not be '.' or '..'")
	}
	for i := 0; i < len(name); i++ {
		char := name[i]
		if char < 32 || char == 127 {
			return "", NewError(ErrCodeValidation, "file name must not contain control characters")
		}
		if char == '/' || char == '\\' {
			return "", NewError(ErrCodeValidation, "file name must not contain path separators")
		}
	}
	return name, nil
}

// ParseFileType validates a file type, an empty value defaults to FileTypeTex.
func ParseFileType(raw string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FileTypeTex:
		return FileTypeTex, nil
	case FileTypeBib:
		return FileTypeBib, nil
	default:
		return "", Errorf(ErrCodeValidation, "unsupported file type %q", raw)
	}
}

// FileTypeForName guesses the file type from the name extension.
func FileTypeForName(name string) FileType {
	if strings.HasSuffix(strings.ToLower(name), ".bib") {
		return FileTypeBib
	}
	return FileTypeTex
}
