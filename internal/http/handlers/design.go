package handlers

import (
	"net/http"
	"strings"

	"boardgen/internal/domain"
	"boardgen/internal/pipeline"
)

type designRequest struct {
	WhiteboardImage string `json:"whiteboardImage"`
	ProductImage    string `json:"productImage"`
	Node            string `json:"node"`
	Task            string `json:"task"`
	AnalysisResult  string `json:"node1_1Result"`
}

// DesignAgent runs node 1-1 (analysis) or node 1-2 (render) of the bead
// design flow.
func (a *App) DesignAgent(w http.ResponseWriter, r *http.Request) {
	if a.Design == nil {
		a.unavailable(w, "design agent")
		return
	}
	var body designRequest
	if err := decodeJSON(w, r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	node := strings.TrimSpace(body.Node)
	if node == "" {
		node = pipeline.DesignNodeAnalyze
	}
	task := strings.TrimSpace(body.Task)
	if task == "" {
		task = pipeline.DefaultDesignTask
	}
	req := pipeline.DesignRequest{
		Whiteboard: body.WhiteboardImage,
		Product:    body.ProductImage,
		Analysis:   body.AnalysisResult,
	}

	switch node {
	case pipeline.DesignNodeAnalyze:
		out, err := a.Design.Analyze(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusOK, map[string]any{"result": out, "node": node, "task": task})
	case pipeline.DesignNodeRender:
		res, err := a.Design.Render(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		a.json(w, http.StatusOK, map[string]any{"result": res, "node": node, "task": task, "persisted": res.Persisted})
	default:
		a.fail(w, r, domain.Validation("node", "must be 1-1 or 1-2"))
	}
}
