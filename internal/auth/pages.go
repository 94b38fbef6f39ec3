package auth

import (
	"html/template"
	"net/http"

	"github.com/FahadAltaf/PropPulse/internal/config"
	"github.com/FahadAltaf/PropPulse/internal/recovery"
)

// pages holds every recovery page. Each page is a named template sharing
// the "head" and "foot" blocks.
var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="referrer" content="no-referrer">
<title>{{.Title}} | {{.Site.SiteName}}</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    background: #f5f5f5;
    color: #1a1a1a;
    display: flex;
    align-items: center;
    justify-content: center;
    min-height: 100vh;
  }
  .card {
    background: #fff;
    border: 1px solid #e0e0e0;
    border-radius: 8px;
    padding: 2.5rem 2rem;
    width: 100%;
    max-width: 400px;
    box-shadow: 0 1px 3px rgba(0,0,0,0.06);
  }
  .card img.logo { max-height: 40px; margin-bottom: 1rem; }
  .card h1 { font-size: 1.25rem; font-weight: 600; margin-bottom: 0.25rem; }
  .card p.sub { font-size: 0.85rem; color: #666; margin-bottom: 1.5rem; }
  .error, .notice {
    border-radius: 6px;
    padding: 0.6rem 0.75rem;
    font-size: 0.85rem;
    margin-bottom: 1rem;
  }
  .error { background: #fef2f2; color: #991b1b; border: 1px solid #fecaca; }
  .notice { background: #f0fdf4; color: #166534; border: 1px solid #bbf7d0; }
  label { display: block; font-size: 0.85rem; font-weight: 500; margin-bottom: 0.35rem; color: #333; }
  input[type="email"], input[type="password"] {
    width: 100%;
    padding: 0.55rem 0.7rem;
    border: 1px solid #d0d0d0;
    border-radius: 6px;
    font-size: 0.9rem;
    outline: none;
    margin-bottom: 1rem;
  }
  input:focus { border-color: {{.Accent}}; }
  ul.rules { list-style: none; font-size: 0.8rem; margin-bottom: 1rem; color: #666; }
  ul.rules li::before { content: "\2717  "; color: #991b1b; }
  ul.rules li.met { color: #166534; }
  ul.rules li.met::before { content: "\2713  "; color: #166534; }
  button, a.button {
    display: block;
    width: 100%;
    padding: 0.6rem;
    background: {{.Accent}};
    color: #fff;
    border: none;
    border-radius: 6px;
    font-size: 0.9rem;
    font-weight: 500;
    text-align: center;
    text-decoration: none;
    cursor: pointer;
  }
  button:disabled { opacity: 0.6; cursor: default; }
  .spinner {
    width: 32px; height: 32px; margin: 1rem auto;
    border: 3px solid #e0e0e0; border-top-color: {{.Accent}};
    border-radius: 50%; animation: spin 0.8s linear infinite;
  }
  @keyframes spin { to { transform: rotate(360deg); } }
  p.foot { font-size: 0.8rem; color: #666; margin-top: 1.25rem; text-align: center; }
  p.foot a { color: {{.Accent}}; }
</style>
</head>
<body>
<div class="card">
  {{if .Site.LogoURL}}<img class="logo" src="{{.Site.LogoURL}}" alt="{{.Site.SiteName}}">{{end}}
{{end}}

{{define "foot"}}
  {{if .Site.ContactEmail}}<p class="foot">Need help? <a href="mailto:{{.Site.ContactEmail}}">{{.Site.ContactEmail}}</a></p>{{end}}
</div>
</body>
</html>{{end}}

{{define "checking"}}{{template "head" .}}
  <h1>Reset password</h1>
  <p class="sub">Verifying your reset link...</p>
  <div class="spinner" role="status" aria-label="Verifying"></div>
  {{if .Relay}}
  <form id="relay" method="POST" action="{{.VerifyURL}}">
    <input type="hidden" name="fragment" id="fragment" value="">
    <input type="hidden" name="query" value="{{.RawQuery}}">
  </form>
  <script>
    (function () {
      var form = document.getElementById("relay");
      document.getElementById("fragment").value = window.location.hash.replace(/^#/, "");
      form.submit();
    })();
  </script>
  {{end}}
{{template "foot" .}}{{end}}

{{define "invalid"}}{{template "head" .}}
  <h1>Reset password</h1>
  <div class="error">{{.Notice}}</div>
  <a class="button" href="{{.ForgotURL}}">Request a new link</a>
{{template "foot" .}}{{end}}

{{define "form"}}{{template "head" .}}
  <h1>Choose a new password</h1>
  <p class="sub">{{if .Email}}Resetting the password for {{.Email}}.{{else}}Enter and confirm your new password.{{end}}</p>
  {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
  <form method="POST" action="{{.ResetURL}}" id="reset">
    <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
    <label for="password">New password</label>
    <input type="password" id="password" name="password" autocomplete="new-password" required autofocus>
    <ul class="rules" id="rules">
      <li data-rule="has_min_length"{{if .Strength.MinLength}} class="met"{{end}}>At least {{.MinLength}} characters</li>
      <li data-rule="has_upper_case"{{if .Strength.UpperCase}} class="met"{{end}}>One uppercase letter</li>
      <li data-rule="has_lower_case"{{if .Strength.LowerCase}} class="met"{{end}}>One lowercase letter</li>
      <li data-rule="has_number"{{if .Strength.Number}} class="met"{{end}}>One number</li>
      <li data-rule="has_special_char"{{if .Strength.SpecialChar}} class="met"{{end}}>One special character</li>
    </ul>
    <label for="confirm_password">Confirm password</label>
    <input type="password" id="confirm_password" name="confirm_password" autocomplete="new-password" required>
    <button type="submit" id="submit"{{if not .Strength.IsStrong}} disabled{{end}}>Reset password</button>
  </form>
  <script>
    (function () {
      var minLength = {{.MinLength}};
      var specials = {{.SpecialChars}};
      var form = document.getElementById("reset");
      var input = document.getElementById("password");
      var button = document.getElementById("submit");
      function facets(v) {
        var f = {
          has_min_length: Array.from(v).length >= minLength,
          has_upper_case: /[A-Z]/.test(v),
          has_lower_case: /[a-z]/.test(v),
          has_number: /[0-9]/.test(v),
          has_special_char: false
        };
        for (var i = 0; i < v.length; i++) {
          if (specials.indexOf(v.charAt(i)) >= 0) { f.has_special_char = true; break; }
        }
        f.is_strong = f.has_min_length && f.has_upper_case && f.has_lower_case && f.has_number;
        return f;
      }
      input.addEventListener("input", function () {
        var f = facets(input.value);
        document.querySelectorAll("#rules li").forEach(function (li) {
          li.classList.toggle("met", f[li.dataset.rule]);
        });
        button.disabled = !f.is_strong;
      });
      form.addEventListener("submit", function (e) {
        if (!facets(input.value).is_strong) { e.preventDefault(); return; }
        button.disabled = true;
      });
    })();
  </script>
{{template "foot" .}}{{end}}

{{define "forgot"}}{{template "head" .}}
  <h1>Forgot password</h1>
  {{if .Notice}}
  <div class="notice">{{.Notice}}</div>
  {{else}}
  <p class="sub">Enter your email and we will send you a reset link.</p>
  {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
  <form method="POST" action="{{.ForgotURL}}">
    <label for="email">Email</label>
    <input type="email" id="email" name="email" value="{{.Email}}" autocomplete="email" required autofocus>
    <button type="submit">Send reset link</button>
  </form>
  {{end}}
{{template "foot" .}}{{end}}
`))

// pageData is passed to every page template.
type pageData struct {
	Site   config.SiteSettings
	Accent template.CSS
	Title  string

	Error  string
	Notice string
	Email  string

	CSRFToken string
	Strength     recovery.Strength
	MinLength    int
	SpecialChars string

	Relay    bool
	RawQuery string

	ResetURL  string
	VerifyURL string
	ForgotURL string
}

func newPageData(site config.SiteSettings, title string) pageData {
	return pageData{
		Site:         site,
		Accent:       template.CSS(site.PrimaryColor),
		Title:        title,
		MinLength:    recovery.MinPasswordLength,
		SpecialChars: recovery.SpecialChars,
		ResetURL:     ResetPasswordPath,
		VerifyURL:    VerifyPath,
		ForgotURL:    ForgotPasswordPath,
	}
}

// setPageHeaders applies the headers every recovery page carries. Pages
// may hold one-time tokens, so they must not be cached, framed or leak
// through Referer.
func setPageHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", "frame-ancestors 'none'")
	h.Set("Cache-Control", "no-store")
	h.Set("Referrer-Policy", "no-referrer")
}

// renderPage writes a named page with the given status.
func renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	setPageHeaders(w)
	w.WriteHeader(status)
	_ = pages.ExecuteTemplate(w, name, data)
}
