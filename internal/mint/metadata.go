package mint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"fortunebridge/internal/model"
)

const defaultNFTName = "Fortune Reading"

// buildMetadata assembles the ERC-721 metadata for a consult. When the tarot
// image reference is not already a dereferenceable URI, the raw bytes are
// fetched and re-pinned; fetch failures keep the original reference and are
// not fatal.
func (p *Pipeline) buildMetadata(ctx context.Context, consult model.Consult, receiptID string) model.NFTMetadata {
	name := consult.TarotName
	if name == "" {
		name = defaultNFTName
	}

	image := consult.Tarot
	if image != "" && !strings.HasPrefix(image, "http") && !strings.HasPrefix(image, "ipfs://") {
		if uri, err := p.pinImageRef(ctx, image); err != nil {
			p.logger.Warn("tarot image fetch failed, keeping original reference",
				zap.String("ref", image), zap.Error(err))
		} else {
			image = uri
		}
	}

	return model.NFTMetadata{
		Name:        name,
		Description: consult.Short,
		Image:       image,
		Attributes: []model.NFTAttribute{
			{TraitType: "Consult Type", Value: consult.Consult},
			{TraitType: "Language", Value: consult.Lang},
			{TraitType: "Receipt ID", Value: receiptID},
			{TraitType: "Tarot", Value: consult.TarotName},
		},
	}
}

func (p *Pipeline) pinImageRef(ctx context.Context, ref string) (string, error) {
	url := ref
	if p.cfg.AssetBaseURL != "" {
		url = strings.TrimSuffix(p.cfg.AssetBaseURL, "/") + "/" + strings.TrimPrefix(ref, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", err
	}
	return p.uploader.UploadImage(ctx, raw)
}
