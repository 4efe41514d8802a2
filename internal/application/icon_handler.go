package application

import (
	"fmt"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// IconHandler renders the coverage status icon served to pull request
// comments in local comment mode.
type IconHandler struct {
	Renderer   IconRenderer
	Thresholds domain.ThresholdConfig
	PlainGreen bool
}

// Icon renders the icon for opts. An empty color is derived from the
// thresholds the same way comments derive it.
func (h *IconHandler) Icon(opts IconOptions) (string, error) {
	if h.Renderer == nil {
		return "", fmt.Errorf("no icon renderer configured")
	}
	thresholds := h.Thresholds
	if thresholds == (domain.ThresholdConfig{}) {
		thresholds = domain.DefaultThresholds()
	}

	msg := domain.NewMessage(opts.Coverage, opts.Reference, opts.Label)
	color := opts.Color
	if color == "" {
		color = msg.Color(thresholds).Token(h.PlainGreen)
	}
	return h.Renderer.Render(msg.Icon(), color)
}
