package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	metadata "github.com/aarsakian/DiskImage/FS"
	"github.com/aarsakian/DiskImage/disk"
	"github.com/aarsakian/DiskImage/exporter"
	"github.com/aarsakian/DiskImage/filters"
	"github.com/aarsakian/DiskImage/logger"
	"github.com/aarsakian/DiskImage/reporter"
	"github.com/aarsakian/DiskImage/tree"
	"github.com/aarsakian/DiskImage/utils"
)

const version = "0.0.1"

func main() {
	var location string
	verbose := flag.Bool("v", false, "informational output")
	veryVerbose := flag.Bool("vv", false, "debug output")
	showVersion := flag.Bool("version", false, "print the version and exit")

	partitionNum := flag.Int("partition", -1, "process only the selected volume")
	listVolumes := flag.Bool("listvolumes", false, "list the discovered volumes")
	orphans := flag.Bool("orphans", false, "show only orphaned items")
	deleted := flag.Bool("deleted", false, "show only deleted items")
	selectedFiles := flag.String("filenames", "", "select items by name, comma separated")
	fileExtensions := flag.String("extensions", "", "select items by extension, comma separated")
	filesPath := flag.String("path", "", "select items under this path")
	buildTree := flag.Bool("tree", false, "show the directory tree")
	recursive := flag.Bool("recursive", false, "descend into disk images found inside the filesystems")
	findPattern := flag.String("find", "", "find items by case insensitive name substring")
	useRegex := flag.Bool("regex", false, "treat the find pattern as a regular expression")
	showTimestamps := flag.Bool("timestamps", false, "show item timestamps")
	showFileSize := flag.Bool("filesize", false, "show file sizes")
	showPath := flag.Bool("showpath", false, "show full paths instead of names")
	flag.StringVar(&location, "location", "", "export the selected files to this path")
	hashExported := flag.String("hash", "", "hash exported files, MD5 or SHA1")
	strategy := flag.String("strategy", "overwrite", "name collision strategy for exported files, overwrite or Id")
	logfile := flag.String("logfile", "", "append log output to this file")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: di [options] <imagefile>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("di %s\n", version)
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	imagefile := flag.Arg(0)

	verbosity := logger.LevelQuiet
	if *verbose {
		verbosity = logger.LevelInfo
	}
	if *veryVerbose {
		verbosity = logger.LevelDebug
	}
	logger.InitializeLogger(verbosity, *logfile)

	img, err := disk.FromFile(imagefile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "di: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	if *listVolumes {
		for _, info := range img.ListVolumes() {
			fmt.Println(info)
		}
		return
	}

	rp := reporter.Reporter{
		ShowPath:       *showPath || *filesPath != "",
		ShowTimestamps: *showTimestamps,
		ShowFileSize:   *showFileSize,
		ShowTree:       *buildTree,
	}

	if *findPattern != "" {
		found, err := img.Find(*findPattern, *useRegex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "di: %v\n", err)
			os.Exit(1)
		}
		rp.Show(found, tree.Tree{})
		return
	}

	fm := new(filters.FilterManager)
	if *selectedFiles != "" {
		fm.Register(filters.NameFilter{Filenames: utils.GetEntries(*selectedFiles)})
	}
	if *fileExtensions != "" {
		fm.Register(filters.ExtensionsFilter{Extensions: utils.GetEntries(*fileExtensions)})
	}
	if *filesPath != "" {
		fm.Register(filters.PathFilter{NamePath: *filesPath})
	}
	fm.Register(filters.OrphansFilter{Include: *orphans})
	fm.Register(filters.DeletedFilter{Include: *deleted})

	if *recursive {
		items := img.GetItemsRecursive()
		rp.Show(fm.ApplyFilters(items), tree.Tree{})
		var fsInfos []string
		for _, fs := range img.FileSystems {
			fsInfos = append(fsInfos, fs.GetInfo())
		}
		rp.ShowSummary(fsInfos, items)
		return
	}

	var fsInfos []string
	for fsIdx, fs := range img.FileSystems {
		if *partitionNum != -1 && fsIdx != *partitionNum {
			continue
		}
		fsInfos = append(fsInfos, fs.GetInfo())

		items := fs.AllItems().Collect()
		selected := fm.ApplyFilters(items)

		var itemsTree tree.Tree
		if *buildTree {
			itemsTree.Build(items, fs.Root().Id)
		}
		rp.Show(selected, itemsTree)

		if location != "" {
			exp := exporter.Exporter{Location: location, Hash: strings.ToUpper(*hashExported),
				Strategy: *strategy}
			exp.ExportItems(metadata.FilterOutFolders(selected), fs)
			if *hashExported != "" {
				exp.HashFiles(metadata.FilterOutFolders(selected))
			}
		}
	}

	allItems := img.GetItems().Collect()
	rp.ShowSummary(fsInfos, allItems)
}
