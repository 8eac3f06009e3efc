package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/genflow/internal/datauri"
	"github.com/BaSui01/genflow/llm"
)

const (
	backgroundInstruction = "Generate a new PNG image containing only the main subject from the provided image, with a transparent background."
	photoPattern          = `^data:image/(jpeg|png|webp)(;[^,]*)?,`
)

var errNoImage = errors.New("no image was generated")

func renderBackgroundRemoval(input map[string]any) (*llm.Request, error) {
	raw, _ := input["photoDataUri"].(string)
	u, err := datauri.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("photoDataUri: %w", err)
	}
	mime := u.MIMEType
	if err := u.Verify(); err != nil {
		// A mislabelled image is sent with its detected type.
		if sniffed := u.SniffedType(); strings.HasPrefix(sniffed, "image/") {
			mime = sniffed
		}
	}
	return &llm.Request{
		Prompt: backgroundInstruction,
		Media:  []llm.Media{{MIMEType: mime, Data: u.Data}},
	}, nil
}

func processedPhoto(resp *llm.Response) (map[string]any, error) {
	for _, m := range resp.Media {
		if len(m.Data) == 0 && m.URL == "" {
			continue
		}
		mime := m.MIMEType
		if mime == "" && len(m.Data) > 0 {
			mime = datauri.Sniff(m.Data)
		}
		if len(m.Data) > 0 && !strings.HasPrefix(mime, "image/") {
			continue
		}
		return map[string]any{"processedPhotoDataUri": llm.Media{MIMEType: mime, Data: m.Data, URL: m.URL}.DataURI()}, nil
	}
	return nil, errNoImage
}
