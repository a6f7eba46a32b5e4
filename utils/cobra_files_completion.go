package utils

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// CompleteFilesByExtension suggests directories and files ending in one of
// the given extensions, such as ".scene.yaml"
func CompleteFilesByExtension(extensions ...string) func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return completeFiles(toComplete, extensions)
	}
}

func completeFiles(toComplete string, extensions []string) ([]string, cobra.ShellCompDirective) {
	dir := filepath.Dir(toComplete)
	prefix := filepath.Base(toComplete)

	// If no path separator, we're completing in current directory
	if !strings.Contains(toComplete, "/") {
		dir = "."
		prefix = toComplete
	} else if strings.HasSuffix(toComplete, "/") {
		dir = strings.TrimSuffix(toComplete, "/")
		prefix = ""
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var suggestions []string
	for _, file := range files {
		name := file.Name()

		// Skip hidden files and non-matching prefixes
		if strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}

		suggestion := name
		if dir != "." {
			suggestion = filepath.Join(dir, name)
		}

		if file.IsDir() {
			suggestions = append(suggestions, suggestion+"/")
		} else if hasExtension(name, extensions) {
			suggestions = append(suggestions, suggestion)
		}
	}

	slices.Sort(suggestions)
	return suggestions, cobra.ShellCompDirectiveNoFileComp
}

func hasExtension(filename string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}
