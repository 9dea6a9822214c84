package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/learning-journal/journal-cache/internal/cache"
	"github.com/learning-journal/journal-cache/internal/version"
)

// printVersion 输出注入的版本与提交号。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}

// printCacheTable 列出所有缓存仓及条目数量，current 标记当前配置的版本。
func printCacheTable(ctx context.Context, registry cache.Registry, current string) error {
	names, err := registry.Names(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(stdOut)
	table.Header([]string{"Cache", "Entries", "Current"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, name := range names {
		store, err := registry.Open(ctx, name)
		if err != nil {
			return err
		}
		keys, err := store.Keys(ctx)
		if err != nil {
			return err
		}
		marker := ""
		if name == current {
			marker = "*"
		}
		data = append(data, []string{name, strconv.Itoa(len(keys)), marker})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
