package core

import (
	"embed"
	"html/template"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

func loadTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))
}

// navbar is what every page header shows about the signed-in user.
type navbar struct {
	LoggedIn bool
	IsAdmin  bool
	Username string
}

// navState follows the session through a subscription, the way the page
// header reacts to login and logout without polling.
type navState struct {
	v atomic.Pointer[navbar]
}

func watchNavbar(state *SessionState) (*navState, func()) {
	n := &navState{}
	n.v.Store(&navbar{})
	unsubscribe := state.Subscribe(func(id *Identity) {
		if id == nil {
			n.v.Store(&navbar{})
			return
		}
		n.v.Store(&navbar{LoggedIn: true, IsAdmin: id.IsAdmin(), Username: id.Username})
	})
	return n, unsubscribe
}

func (n *navState) get() navbar {
	return *n.v.Load()
}

// render executes a page template with the shared header data merged in.
func render(c *gin.Context, nav *navState, status int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Nav"] = nav.get()
	data["CSRF"] = c.GetString(ctxCSRFToken)
	data["Flashes"] = takeFlashes(c)
	c.HTML(status, page, data)
}

// renderFailure re-renders a form page with the error inline; the caller
// passes back the submitted values so the form stays populated.
func renderFailure(c *gin.Context, nav *navState, page, title string, err error, fallback string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Error"] = UserMessage(err, fallback)
	status := StatusCode(err)
	if status == http.StatusOK {
		status = http.StatusBadRequest
	}
	render(c, nav, status, page, title, data)
}
