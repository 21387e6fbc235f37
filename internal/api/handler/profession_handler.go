package handler

import (
	"context"

	"docintel-go/internal/processor"
	"docintel-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ProfessionHandler serves POST /professions/suggest.
type ProfessionHandler struct {
	proc *processor.DocumentProcessor
}

func NewProfessionHandler(proc *processor.DocumentProcessor) *ProfessionHandler {
	return &ProfessionHandler{proc: proc}
}

// SuggestRequest is the JSON body of a suggestion request.
type SuggestRequest struct {
	Text string `json:"text"`
}

// ToxicityResponse summarises offensive-language matches for display.
type ToxicityResponse struct {
	Detected   bool     `json:"detected"`
	Confidence float64  `json:"confidence"`
	Count      int      `json:"count"`
	Preview    []string `json:"preview"`
	HasMore    bool     `json:"has_more"`
	Categories []string `json:"categories"`
}

// SuggestResponse lists ranked professions. Toxicity is present only when
// offensive terms were matched.
type SuggestResponse struct {
	Suggestions []types.ProfessionScore `json:"suggestions"`
	Toxicity    *ToxicityResponse       `json:"toxicity,omitempty"`
	Message     string                  `json:"message,omitempty"`
}

const toxicMessage = "A descrição contém linguagem ofensiva. Reformule o texto para receber sugestões."

func newSuggestResponse(res types.ProfessionResult) SuggestResponse {
	out := SuggestResponse{Suggestions: res.Suggestions}
	if out.Suggestions == nil {
		out.Suggestions = []types.ProfessionScore{}
	}
	if v := res.Toxicity; v != nil {
		out.Toxicity = &ToxicityResponse{
			Detected:   v.Detected,
			Confidence: v.Confidence,
			Count:      v.Count(),
			Preview:    v.Preview(),
			HasMore:    v.HasMore(),
			Categories: v.Categories,
		}
		if v.Detected {
			out.Message = toxicMessage
		}
	}
	return out
}

// Suggest handles POST /professions/suggest.
func (h *ProfessionHandler) Suggest(ctx context.Context, c *app.RequestContext) {
	var req SuggestRequest
	if err := c.BindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	res, err := h.proc.SuggestProfessions(ctx, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, newSuggestResponse(res))
}
