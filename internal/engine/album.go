package engine

import "fmt"

// AppendImages returns gallery with urls appended, never aliasing gallery.
func AppendImages(gallery, urls []string) []string {
	out := make([]string, 0, len(gallery)+len(urls))
	out = append(out, gallery...)
	return append(out, urls...)
}

// RemoveImage returns gallery without index k.
func RemoveImage(gallery []string, k int) ([]string, error) {
	if k < 0 || k >= len(gallery) {
		return nil, fmt.Errorf("image index %d out of range (album has %d)", k, len(gallery))
	}
	out := make([]string, 0, len(gallery)-1)
	out = append(out, gallery[:k]...)
	return append(out, gallery[k+1:]...), nil
}

// Cover is the album's file_url: its first image, or "" when empty.
func Cover(gallery []string) string {
	if len(gallery) == 0 {
		return ""
	}
	return gallery[0]
}
