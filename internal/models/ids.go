package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned when a composite id cannot be split
var ErrInvalidID = errors.New("invalid composite id")

const (
	catalogIDSep = "/"
	mangaIDSep   = "|"
)

// ComposeCatalogID builds the "{providerId}/{sub|dub}" id carried between calls
func ComposeCatalogID(providerID string, track SubOrDub) string {
	return providerID + catalogIDSep + string(track)
}

// SplitCatalogID recovers the provider id and track from a composite id
func SplitCatalogID(id string) (string, SubOrDub, error) {
	idx := strings.LastIndex(id, catalogIDSep)
	if idx <= 0 || idx == len(id)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	track := SubOrDub(id[idx+1:])
	if !track.Valid() {
		return "", "", fmt.Errorf("%w: unknown track %q", ErrInvalidID, track)
	}
	return id[:idx], track, nil
}

// ComposeMangaID builds the "hashId|slug" manga id
func ComposeMangaID(hashID, slug string) string {
	return hashID + mangaIDSep + slug
}

// SplitMangaID recovers hash id and slug from a manga id. The slug may be empty.
func SplitMangaID(id string) (string, string, error) {
	parts := strings.SplitN(id, mangaIDSep, 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

// ChapterRef holds the fields encoded in a chapter id
type ChapterRef struct {
	HashID    string
	Slug      string
	ChapterID string
	Number    string
}

// ComposeChapterID builds the "hashId|slug|chapterId|number" chapter id
func ComposeChapterID(ref ChapterRef) string {
	return strings.Join([]string{ref.HashID, ref.Slug, ref.ChapterID, ref.Number}, mangaIDSep)
}

// SplitChapterID parses a chapter id produced by ComposeChapterID
func SplitChapterID(id string) (ChapterRef, error) {
	parts := strings.Split(id, mangaIDSep)
	if len(parts) != 4 || parts[0] == "" || parts[2] == "" {
		return ChapterRef{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return ChapterRef{HashID: parts[0], Slug: parts[1], ChapterID: parts[2], Number: parts[3]}, nil
}
