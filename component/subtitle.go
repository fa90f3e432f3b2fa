package component

import (
	"bufio"
	"strings"

	"github.com/jfk9w-go/flu"
)

// convertSRT rewrites SubRip subtitles as WebVTT: a WEBVTT header is
// prepended and the comma millisecond separators in cue timings are replaced
// with dots. Cue numbers are kept as cue identifiers, which WebVTT allows.
func convertSRT(in flu.Input, out flu.Output) error {
	r, err := in.Reader()
	if err != nil {
		return err
	}

	defer flu.CloseQuietly(r)
	w, err := out.Writer()
	if err != nil {
		return err
	}

	defer flu.CloseQuietly(w)
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString("WEBVTT\n\n"); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.Contains(line, "-->") {
			line = strings.ReplaceAll(line, ",", ".")
		}

		if _, err := buf.WriteString(line + "\n"); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	return buf.Flush()
}
