package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const pageName = "index.html"

// page renders the dashboard. Without JavaScript the forms below post back
// and redirect here; with it, /ws keeps the page current.
func (h *Handler) page(c *gin.Context) {
	s := currentSession(c)
	if s == nil {
		c.String(http.StatusInternalServerError, errNoSession)
		return
	}
	c.HTML(http.StatusOK, pageName, gin.H{
		"View":  h.view(s),
		"Draft": s.Input.Draft(),
	})
}

func (h *Handler) pageSearch(c *gin.Context) {
	if s := currentSession(c); s != nil {
		s.Input.SubmitDraft(c.Request.Context(), c.PostForm("city"))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) pageRefresh(c *gin.Context) {
	if s := currentSession(c); s != nil {
		s.Dashboard.Refresh(c.Request.Context())
	}
	c.Redirect(http.StatusSeeOther, "/")
}
