package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	metadata "github.com/aarsakian/DiskImage/FS"
	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/utils"
)

type Exporter struct {
	Location string
	Hash     string
	Strategy string // "overwrite" or "Id" for name collisions
}

// ExportItems writes the content of every non folder item to the export
// location. A failing item is logged and skipped.
func (exp Exporter) ExportItems(items []metadata.Item, fs metadata.FileSystem) {
	if exp.Location == "" {
		msg := "No export location was set"
		logger.DILogger.Warning(msg)
		fmt.Printf("%s\n", msg)
		return
	}
	if len(items) == 0 {
		msg := "No items to export"
		logger.DILogger.Warning(msg)
		fmt.Printf("%s\n", msg)
		return
	}
	if err := os.MkdirAll(exp.Location, 0750); err != nil {
		logger.DILogger.Error(err.Error())
		return
	}

	fmt.Printf("About to export %d files\n", len(items))
	for _, item := range items {
		if item.IsDir {
			continue
		}
		content, err := fs.ReadFileContent(item)
		if err != nil {
			logger.DILogger.Error(fmt.Sprintf("exporting %s: %v", item.Name, err))
			continue
		}
		exp.CreateFile(exp.fname(item), content)
	}
}

func (exp Exporter) fname(item metadata.Item) string {
	if exp.Strategy == "Id" {
		return fmt.Sprintf("[%d]%s", item.Id, item.Name)
	}
	return item.Name
}

func (exp Exporter) HashFiles(items []metadata.Item) {
	if exp.Hash != "MD5" && exp.Hash != "SHA1" {
		fmt.Printf("Only supported hashes are MD5 or SHA1 and not %s!\n", exp.Hash)
		return
	}
	for _, item := range items {
		if item.IsDir {
			continue
		}
		fname := exp.fname(item)
		data, err := os.ReadFile(filepath.Join(exp.Location, fname))
		if err != nil {
			logger.DILogger.Error(err.Error())
			continue
		}
		if exp.Hash == "MD5" {
			fmt.Printf("File %s has %s %s\n", fname, exp.Hash, utils.GetMD5(data))
		} else {
			fmt.Printf("File %s has %s %s\n", fname, exp.Hash, utils.GetSHA1(data))
		}
	}
}

func (exp Exporter) CreateFile(fname string, data []byte) {
	fullpath := filepath.Join(exp.Location, fname)
	if err := utils.WriteFile(fullpath, data); err != nil {
		logger.DILogger.Error(fmt.Sprintf("writing %s: %v", fullpath, err))
	}
}
