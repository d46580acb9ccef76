package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/starford/sowilo/internal/finder"
)

func renderJSON(w io.Writer, res *finder.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// renderText prints one numbered line per item; the numbers are the values
// accepted by --open.
func renderText(w io.Writer, res *finder.Result, colorOutput bool) {
	dirColor := color.New(color.FgBlue, color.Bold)
	scoreColor := color.New(color.FgHiBlack)
	indexColor := color.New(color.FgCyan)
	for _, c := range []*color.Color{dirColor, scoreColor, indexColor} {
		if colorOutput {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	if len(res.Items) == 0 {
		fmt.Fprintf(w, "no matches in %s\n", res.Dir)
		return
	}

	width := len(fmt.Sprint(len(res.Items)))
	for i, it := range res.Items {
		path := it.Path
		if it.IsDir {
			path = dirColor.Sprint(path)
		}
		fmt.Fprintf(w, "%s  %s    %s\n",
			indexColor.Sprintf("%*d", width, i+1),
			path,
			scoreColor.Sprintf("(%d)", it.Score))
	}
}
