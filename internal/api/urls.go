package api

import (
	"strings"

	"stealthcompany.com/wardbook/internal/model"
)

// fileURL renders a storage key as a public CDN URL; empty without a CDN
func (s *Server) fileURL(key string) string {
	if s.cdnDomain == "" || key == "" {
		return ""
	}
	domain := strings.TrimSuffix(s.cdnDomain, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain + "/" + strings.TrimPrefix(key, "/")
}

func (s *Server) fileURLs(keys []string) []string {
	if s.cdnDomain == "" {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.fileURL(k)
	}
	return out
}

func (s *Server) renderNote(n *model.Note) *model.Note {
	n.FileURLs = s.fileURLs(n.Files)
	return n
}

func (s *Server) renderMedication(m *model.Medication) *model.Medication {
	m.FileURLs = s.fileURLs(m.Files)
	return m
}

func (s *Server) renderBundle(b *model.DocumentBundle) *model.DocumentBundle {
	for c, list := range b.Categories {
		for i := range list {
			list[i].URL = s.fileURL(list[i].Key)
		}
		b.Categories[c] = list
	}
	return b
}
