package httpserver

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"path"
	"strings"

	"lanshare/internal/fsutil"
	"lanshare/internal/presence"
	"lanshare/internal/qr"
	"lanshare/internal/remote"
)

type homeView struct {
	SharedFolder string
	FolderName   string
	LocalIP      string
	Port         int
	ServerURL    string
	QRCode       template.URL
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.touch(r, sess, "home")

	v := homeView{
		SharedFolder: s.root.Path(),
		FolderName:   s.root.Name(),
		LocalIP:      s.localIP,
		Port:         s.cfg.Port,
		ServerURL:    s.URL(),
	}
	if v.SharedFolder != "" {
		uri, err := qr.DataURI(v.ServerURL)
		if err != nil {
			LoggerFromContext(r.Context()).Warn("qr code", "error", err)
		} else {
			// The data URI is produced locally from a base64 PNG.
			v.QRCode = template.URL(uri)
		}
	}
	s.render(w, r, sess, "home", "LAN Share", v)
}

func (s *Server) handleSetFolder(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	abs, err := s.root.Set(r.PostFormValue("folder_path"))
	if err != nil {
		LoggerFromContext(r.Context()).Info("set folder rejected", "error", err)
		s.redirectWithFlash(w, r, sess, "/", "error", "Invalid folder path")
		return
	}
	LoggerFromContext(r.Context()).Info("shared folder changed", "folder", abs, "by", sess.Name())
	s.redirectWithFlash(w, r, sess, "/", "success", "Folder set successfully: "+abs)
}

type crumb struct {
	Name string
	Path string
}

// breadcrumbs pairs every segment of rel with its cumulative prefix.
func breadcrumbs(rel string) []crumb {
	if rel == "" {
		return nil
	}
	parts := strings.Split(rel, "/")
	out := make([]crumb, len(parts))
	for i, p := range parts {
		out[i] = crumb{Name: p, Path: strings.Join(parts[:i+1], "/")}
	}
	return out
}

type entryView struct {
	fsutil.Entry
	Href  string
	Zip   string
	Thumb string
}

type browseView struct {
	FolderName  string
	Path        string
	Parent      string
	HasParent   bool
	Breadcrumbs []crumb
	Entries     []entryView
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	base, err := s.root.Get()
	if err != nil {
		s.redirectWithFlash(w, r, sess, "/", "error", "No folder is currently being shared")
		return
	}
	sub := fsutil.CleanRelPath(r.PathValue("subpath"))
	if sub == "" && !fsutil.IsDir(base) {
		s.redirectWithFlash(w, r, sess, "/", "error", "Path not found")
		return
	}
	target, err := fsutil.Resolve(base, sub)
	if err != nil {
		LoggerFromContext(r.Context()).Warn("browse rejected", "path", sub, "remote", clientIP(r))
		s.redirectWithFlash(w, r, sess, "/browse", "error", "Access denied")
		return
	}
	if !fsutil.IsDir(target) {
		s.redirectWithFlash(w, r, sess, "/browse", "error", "Path not found")
		return
	}

	location, detail := "browsing: root", "/"
	if sub != "" {
		location, detail = "browsing: /"+sub, "/"+sub
	}
	s.touch(r, sess, location)
	s.record(r, sess, presence.KindBrowsing, detail)

	entries := fsutil.ScanWithin(base, target)
	v := browseView{
		FolderName:  s.root.Name(),
		Path:        sub,
		HasParent:   sub != "",
		Breadcrumbs: breadcrumbs(sub),
		Entries:     make([]entryView, 0, len(entries)),
	}
	if v.HasParent {
		if p := path.Dir(sub); p != "." {
			v.Parent = p
		}
	}
	for _, e := range entries {
		rel := path.Join(sub, e.Name)
		ev := entryView{Entry: e}
		if e.IsDir() {
			ev.Href = "/browse/" + urlPath(rel)
			ev.Zip = "/zip/" + urlPath(rel)
		} else {
			ev.Href = "/download/" + urlPath(rel)
			if isImageExt(strings.ToLower(path.Ext(e.Name))) {
				ev.Thumb = "/thumb?path=" + url.QueryEscape(rel)
			}
		}
		v.Entries = append(v.Entries, ev)
	}
	title := v.FolderName
	if sub != "" {
		title = path.Base(sub) + " - " + v.FolderName
	}
	s.render(w, r, sess, "browse", title, v)
}

type connectView struct {
	RemoteIP   string
	RemotePort string
	LocalURL   string
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.touch(r, sess, "connect")
	v := connectView{
		RemoteIP:   sess.RemoteIP,
		RemotePort: sess.RemotePort,
		LocalURL:   s.URL(),
	}
	if v.RemotePort == "" {
		v.RemotePort = s.cfg.Connect.DefaultPort
	}
	s.render(w, r, sess, "connect", "Connect to another share", v)
}

type connectForm struct {
	Host string `validate:"required,ip|hostname"`
	Port string `validate:"required,port"`
}

func (s *Server) handleConnectTo(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	form := connectForm{
		Host: strings.TrimSpace(r.PostFormValue("remote_ip")),
		Port: strings.TrimSpace(r.PostFormValue("remote_port")),
	}
	if form.Port == "" {
		form.Port = s.cfg.Connect.DefaultPort
	}
	if form.Host == "" {
		s.redirectWithFlash(w, r, sess, "/connect", "error", "Please enter an IP address")
		return
	}
	if err := s.validate.Struct(form); err != nil {
		s.redirectWithFlash(w, r, sess, "/connect", "error", "Invalid address: "+form.Host+":"+form.Port)
		return
	}

	log := LoggerFromContext(r.Context()).With("remote", form.Host, "port", form.Port)
	err := s.prober.Probe(r.Context(), form.Host, form.Port)
	switch {
	case err == nil:
		s.observeProbe("ok")
		log.Info("remote share reachable")
		sess.RemoteIP, sess.RemotePort = form.Host, form.Port
		s.saveSession(w, r, sess)
		http.Redirect(w, r, remote.BrowseURL(form.Host, form.Port), http.StatusSeeOther)
	case errors.Is(err, remote.ErrUnexpectedStatus):
		s.observeProbe("bad_status")
		log.Info("remote share refused", "error", err)
		s.redirectWithFlash(w, r, sess, "/connect", "error", "Could not connect to the remote server")
	default:
		s.observeProbe("error")
		log.Info("remote share unreachable", "error", err)
		s.redirectWithFlash(w, r, sess, "/connect", "error", "Connection failed: "+err.Error())
	}
}

func (s *Server) observeProbe(outcome string) {
	if s.metrics != nil {
		s.metrics.RemoteProbes.WithLabelValues(outcome).Inc()
	}
}
