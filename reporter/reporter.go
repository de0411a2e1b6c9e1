package reporter

import (
	"fmt"

	metadata "github.com/aarsakian/DiskImage/FS"
	"github.com/aarsakian/DiskImage/tree"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/message"
)

type Reporter struct {
	ShowPath       bool
	ShowTimestamps bool
	ShowFileSize   bool
	ShowTree       bool
}

func (rp Reporter) Show(items []metadata.Item, itemsTree tree.Tree) {
	for _, item := range items {
		line := fmt.Sprintf("%-8d %s", item.Id, item.Name)
		if rp.ShowPath {
			line = fmt.Sprintf("%-8d %s", item.Id, item.FullPath())
		}
		if item.IsDir {
			line += " <DIR>"
		}
		if item.Deleted {
			line += " (deleted)"
		}
		if item.Orphan {
			line += " (orphan)"
		}
		if rp.ShowFileSize && !item.IsDir {
			line += fmt.Sprintf(" %s", humanize.Bytes(uint64(item.Size)))
		}
		if rp.ShowTimestamps {
			line += fmt.Sprintf(" created %s modified %s accessed %s",
				item.Created.Format("2006-01-02 15:04:05"),
				item.Modified.Format("2006-01-02 15:04:05"),
				item.Accessed.Format("2006-01-02 15:04:05"))
		}
		fmt.Println(line)
	}

	if rp.ShowTree {
		itemsTree.Show()
	}
}

// ShowSummary prints per filesystem totals after a full walk.
func (rp Reporter) ShowSummary(fsInfos []string, items []metadata.Item) {
	printer := message.NewPrinter(message.MatchLanguage("en"))

	var files, dirs, deleted, orphans int
	var totalSize int64
	for _, item := range items {
		if item.IsDir {
			dirs++
		} else {
			files++
			totalSize += item.Size
		}
		if item.Deleted {
			deleted++
		}
		if item.Orphan {
			orphans++
		}
	}

	for _, info := range fsInfos {
		fmt.Println(info)
	}
	printer.Printf("%d files %d folders (%d deleted, %d orphaned), %s\n",
		files, dirs, deleted, orphans, humanize.Bytes(uint64(totalSize)))
}
