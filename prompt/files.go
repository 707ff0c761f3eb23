package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Dyastin-0/lanbyte/styles"
	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
)

// FileSelector browses directories and returns one regular file.
type FileSelector struct {
	selected string
	dir      string
	filter   string
	page     int
}

func NewFileSelector(dir string) *FileSelector {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &FileSelector{
		dir: abs,
	}
}

func (f *FileSelector) Dir() string {
	return f.dir
}

func (f *FileSelector) filteredEntries() ([]os.DirEntry, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	if f.filter == "" {
		return entries, nil
	}

	filterLower := strings.ToLower(f.filter)

	filtered := make([]os.DirEntry, 0)
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Name()), filterLower) {
			filtered = append(filtered, entry)
		}
	}

	return filtered, nil
}

func (f *FileSelector) options() ([]huh.Option[string], error) {
	entries, err := f.filteredEntries()
	if err != nil {
		return nil, err
	}

	f.page = clampPage(f.page, len(entries))
	totalPages := pages(len(entries))

	var options []huh.Option[string]

	if parent := filepath.Dir(f.dir); parent != f.dir {
		options = append(options, huh.NewOption("../", parent))
	}

	filterText := "Filter files"
	if f.filter != "" {
		filterText = fmt.Sprintf("Filter: '%s'", f.filter)
	}
	options = append(options, huh.NewOption(filterText, optFilter))

	if totalPages > 1 {
		pageInfo := fmt.Sprintf("Page %d of %d (%d items)", f.page+1, totalPages, len(entries))
		options = append(options, huh.NewOption(styles.PAGE.Render(pageInfo), optPageInfo))

		if f.page > 0 {
			options = append(options, huh.NewOption("<-", optPrev))
		}
		if f.page < totalPages-1 {
			options = append(options, huh.NewOption("->", optNext))
		}
	}

	start := f.page * PAGESIZE
	end := min(start+PAGESIZE, len(entries))

	for _, entry := range entries[start:end] {
		path := filepath.Join(f.dir, entry.Name())
		name := entry.Name()

		if entry.IsDir() {
			name = styles.DIR.Render(name + "/")
		} else if info, err := entry.Info(); err == nil {
			name = fmt.Sprintf("%s %s", name, styles.INFO.Render(humanize.IBytes(uint64(info.Size()))))
		}

		options = append(options, huh.NewOption(name, path))
	}

	return append(options, huh.NewOption("Cancel", optCancel)), nil
}

// Run shows the browser until a file is chosen or the user cancels.
func (f *FileSelector) Run() (string, error) {
	for {
		options, err := f.options()
		if err != nil {
			return "", err
		}

		title := fmt.Sprintf("Choose a file in %s:", f.dir)
		if f.filter != "" {
			title += fmt.Sprintf(" [Filter: %s]", f.filter)
		}

		form := huh.NewSelect[string]().
			Title(title).
			Options(options...).
			Value(&f.selected).
			Height(20)

		if err := form.Run(); err != nil {
			return "", err
		}

		switch f.selected {
		case optCancel:
			return "", ErrCanceled
		case optFilter:
			f.filter = filterInput("Filter:", f.filter)
			f.page = 0
		case optPrev:
			f.page--
		case optNext:
			f.page++
		case optPageInfo:
		default:
			if path, ok := f.choose(f.selected); ok {
				return path, nil
			}
		}
	}
}

// choose enters directories and reports regular files as the final pick.
func (f *FileSelector) choose(path string) (string, bool) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", false
	}

	if stat.IsDir() {
		f.dir = path
		f.filter = ""
		f.page = 0
		return "", false
	}

	return path, stat.Mode().IsRegular()
}
