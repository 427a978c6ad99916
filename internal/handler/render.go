package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/hitoshi/perfreview/internal/middleware"
	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// PageData はすべての画面テンプレートに渡す値。
type PageData struct {
	Title     string
	User      *model.User
	Flashes   []session.Flash
	CSRFToken string
	Errors    map[string]string
	Data      any
}

// Renderer はレイアウトと各画面を組み合わせたテンプレート集合。
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

var templateFuncs = template.FuncMap{
	"date": func(t model.Timestamp) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"score": func(f *float64) string {
		if f == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f", *f)
	},
	"fixed": func(f float64) string {
		return fmt.Sprintf("%.1f", f)
	},
	"raw": func(b []byte) string {
		return string(b)
	},
	// answerFor は再表示時に入力済みの回答を取り出す
	"answerFor": func(answers []model.Answer, questionID string) model.Answer {
		for _, a := range answers {
			if a.QuestionID == questionID {
				return a
			}
		}
		return model.Answer{}
	},
	"join": strings.Join,
	"now":  time.Now,
}

// NewRenderer は埋め込みテンプレートを解析する。
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		if f == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(f), ".html")
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// Has は名前の画面が存在するかを返す。
func (rd *Renderer) Has(name string) bool {
	_, ok := rd.pages[name]
	return ok
}

// Page は画面を描画する。セッションのフラッシュメッセージはここで消費する。
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	rd.render(w, r, status, name, PageData{Title: title, Data: data})
}

// Form は検証エラー付きで画面を描画する。
func (rd *Renderer) Form(w http.ResponseWriter, r *http.Request, name, title string, data any, errs map[string]string) {
	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusUnprocessableEntity
	}
	rd.render(w, r, status, name, PageData{Title: title, Data: data, Errors: errs})
}

func (rd *Renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, pd PageData) {
	t, ok := rd.pages[name]
	if !ok {
		rd.logger.Error("template not found", slog.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pd.CSRFToken = middleware.CSRFToken(r.Context())
	if sc := scope(r); sc != nil {
		pd.User = sc.Auth.CurrentUser()
		pd.Flashes = sc.Session.Flashes()
	}

	// 途中で失敗しても中途半端なHTMLを返さないよう、バッファに描画してから書き込む
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", pd); err != nil {
		rd.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// flash は次の画面で表示するメッセージを追加する。
func flash(r *http.Request, kind, message string) {
	if sc := scope(r); sc != nil {
		sc.Session.AddFlash(kind, message)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusFound)
}
