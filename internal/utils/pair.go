package utils

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ImagePair is a high-res file and the low-res file sharing its name
type ImagePair struct {
	Name    string
	HighRes string
	LowRes  string
}

// lowResSuffixes are stripped from low-res names before matching, so that
// 0001x4.png pairs with 0001.png as in the usual DIV2K layout
var lowResSuffixes = []string{"x2", "x3", "x4", "x8", "_lr", "-lr"}

// PairImageFiles matches the images of two directories by relative path and
// base name. Images without a counterpart are returned in unmatched.
func PairImageFiles(highResDir, lowResDir string) (pairs []ImagePair, unmatched []string, err error) {
	for _, dir := range []string{highResDir, lowResDir} {
		if !DirExists(dir) {
			return nil, nil, fmt.Errorf("%s is not a directory", dir)
		}
	}
	hrFiles, err := ListImageFiles(highResDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list high-res images: %w", err)
	}
	lrFiles, err := ListImageFiles(lowResDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list low-res images: %w", err)
	}

	lrByKey := make(map[string]string, len(lrFiles))
	for _, lr := range lrFiles {
		key := pairKey(lowResDir, lr)
		for _, suffix := range lowResSuffixes {
			if trimmed, ok := strings.CutSuffix(key, suffix); ok {
				key = trimmed
				break
			}
		}
		lrByKey[key] = lr
	}

	used := make(map[string]bool, len(lrFiles))
	for _, hr := range hrFiles {
		key := pairKey(highResDir, hr)
		lr, ok := lrByKey[key]
		if !ok {
			unmatched = append(unmatched, hr)
			continue
		}
		used[lr] = true
		pairs = append(pairs, ImagePair{Name: key, HighRes: hr, LowRes: lr})
	}
	for _, lr := range lrFiles {
		if !used[lr] {
			unmatched = append(unmatched, lr)
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs, unmatched, nil
}

// pairKey is the path relative to root without its extension, using forward slashes
func pairKey(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return BaseName(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel)
}
