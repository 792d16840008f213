package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/model-collapse/maskcoco/internal/coco"
	"github.com/model-collapse/maskcoco/internal/dataset"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <root>",
		Short: "Summarize the annotation document of a dataset root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(ctx, args[0])
			if err != nil {
				return err
			}
			doc := ds.Document()
			out := cmd.OutOrStdout()

			type tally struct{ total, crowd, polygons, rle int }
			counts := make(map[int64]*tally)
			for _, ann := range doc.Annotations {
				t := counts[ann.CategoryID]
				if t == nil {
					t = &tally{}
					counts[ann.CategoryID] = t
				}
				t.total++
				if ann.IsCrowd {
					t.crowd++
				}
				if ann.Segmentation.Kind == coco.KindPolygons {
					t.polygons++
				} else {
					t.rle++
				}
			}

			rows := make([][]string, 0, len(doc.Categories))
			for _, c := range ds.Classes() {
				class, _ := ds.ClassID(c.ID)
				t := counts[c.ID]
				if t == nil {
					t = &tally{}
				}
				rows = append(rows, []string{
					strconv.FormatInt(c.ID, 10),
					c.Name,
					strconv.Itoa(int(class)),
					strconv.Itoa(t.total),
					strconv.Itoa(t.crowd),
					strconv.Itoa(t.polygons),
					strconv.Itoa(t.rle),
				})
			}
			fmt.Fprintf(out, "%s %s (%d images, %d annotations)\n",
				doc.Info.Description, doc.Info.DateCreated, len(doc.Images), len(doc.Annotations))
			fmt.Fprintln(out, renderTable(
				[]string{"Category", "Name", "Class", "Annotations", "Crowd", "Polygons", "RLE"},
				rows, 0, 2, 3, 4, 5, 6,
			))
			return nil
		},
	}
}

func openDataset(ctx *commandContext, root string) (*dataset.Dataset, error) {
	layout, err := ctx.layout(root)
	if err != nil {
		return nil, err
	}
	return dataset.LoadFile(layout.DocumentPath(), layout.ImagesDir)
}
