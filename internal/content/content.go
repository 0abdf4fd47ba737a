package content

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var siteYAML []byte

const postDateLayout = "2006-01-02"

var ErrEmptyContent = errors.New("site content is empty")

// Feature es una tarjeta de características (home y /features).
type Feature struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Plan es un plan de la página de precios. PriceID se completa desde config.
type Plan struct {
	Key          string   `yaml:"key"`
	Name         string   `yaml:"name"`
	Price        string   `yaml:"price"`
	AmountCents  int64    `yaml:"amount_cents"`
	Description  string   `yaml:"description"`
	Features     []string `yaml:"features"`
	Popular      bool     `yaml:"popular"`
	ContactSales bool     `yaml:"contact_sales"`
	PriceID      string   `yaml:"-"`
}

type FAQ struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

type TeamMember struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
	Bio  string `yaml:"bio"`
}

// PostSection es un bloque del artículo; el primero suele ir sin título.
type PostSection struct {
	Heading    string   `yaml:"heading"`
	Paragraphs []string `yaml:"paragraphs"`
}

type Post struct {
	Slug     string        `yaml:"slug"`
	Title    string        `yaml:"title"`
	Date     string        `yaml:"date"`
	Author   string        `yaml:"author"`
	Category string        `yaml:"category"`
	Summary  string        `yaml:"summary"`
	Sections []PostSection `yaml:"sections"`
}

// PublishedAt parsea la fecha del post; vacío si es inválida.
func (p Post) PublishedAt() time.Time {
	t, err := time.Parse(postDateLayout, p.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DisplayDate formatea la fecha como "March 15, 2023".
func (p Post) DisplayDate() string {
	t := p.PublishedAt()
	if t.IsZero() {
		return p.Date
	}
	return t.Format("January 2, 2006")
}

type Project struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
}

// Site es todo el contenido estático del sitio de marketing.
type Site struct {
	Brand          string       `yaml:"brand"`
	Tagline        string       `yaml:"tagline"`
	Intro          string       `yaml:"intro"`
	SampleArgument string       `yaml:"sample_argument"`
	HowItWorks     []Feature    `yaml:"how_it_works"`
	Features       []Feature    `yaml:"features"`
	Plans          []Plan       `yaml:"plans"`
	FAQ            []FAQ        `yaml:"faq"`
	FounderLetter  []string     `yaml:"founder_letter"`
	Team           []TeamMember `yaml:"team"`
	Posts          []Post       `yaml:"posts"`
	Projects       []Project    `yaml:"projects"`
}

// Load decodifica el contenido embebido y le aplica los price ids por plan.
func Load(priceIDs map[string]string) (*Site, error) {
	return Parse(siteYAML, priceIDs)
}

// Parse decodifica un documento YAML de contenido.
func Parse(raw []byte, priceIDs map[string]string) (*Site, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, ErrEmptyContent
	}
	var site Site
	if err := yaml.Unmarshal(raw, &site); err != nil {
		return nil, fmt.Errorf("decode site content: %w", err)
	}
	if site.Brand == "" {
		return nil, fmt.Errorf("decode site content: missing brand")
	}

	seen := make(map[string]bool, len(site.Posts))
	for _, p := range site.Posts {
		if p.Slug == "" {
			return nil, fmt.Errorf("decode site content: post %q has no slug", p.Title)
		}
		if seen[p.Slug] {
			return nil, fmt.Errorf("decode site content: duplicated post slug %q", p.Slug)
		}
		seen[p.Slug] = true
	}

	for i := range site.Plans {
		site.Plans[i].PriceID = priceIDs[site.Plans[i].Key]
	}
	return &site, nil
}

// PostBySlug busca un post por slug.
func (s *Site) PostBySlug(slug string) (Post, bool) {
	for _, p := range s.Posts {
		if p.Slug == slug {
			return p, true
		}
	}
	return Post{}, false
}

// PlanByKey busca un plan por clave (basic, professional, enterprise).
func (s *Site) PlanByKey(key string) (Plan, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range s.Plans {
		if p.Key == key {
			return p, true
		}
	}
	return Plan{}, false
}

// PlanByPriceID resuelve el plan a partir del price id que llega en el checkout.
func (s *Site) PlanByPriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, p := range s.Plans {
		if p.PriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}
