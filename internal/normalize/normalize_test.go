package normalize

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/logx"
)

func sp(s string) *string { return domain.StringPtr(s) }

func people(names ...string) []domain.Person {
	out := make([]domain.Person, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Person{Name: n})
	}
	return out
}

func fullRaw() *domain.RawRecord {
	return &domain.RawRecord{
		Title:       sp("Inception"),
		PlotOutline: sp("A thief who steals corporate secrets."),
		Rating:      sp("8.8"),
		Year:        sp("2010"),
		Kind:        sp("movie"),
		CoverURL:    sp("http://x/y.jpg"),
		Plot:        []string{"Dom Cobb is a skilled thief."},
		Genres:      []string{"Action", "Adventure", "Sci-Fi"},
		Countries:   []string{"United States", "United Kingdom"},
		Synopsis:    []string{"The film begins on a beach."},
		Directors:   people("Christopher Nolan"),
		Cast:        people("Leonardo DiCaprio", "Joseph Gordon-Levitt"),
	}
}

func TestNormalize_FullRecord(t *testing.T) {
	rec, missed := New(nil).Normalize("inception", fullRaw())

	assert.Empty(t, missed)
	assert.Equal(t, domain.MovieRecord{
		Title:    "Inception",
		Year:     "2010",
		Rating:   "8.8",
		Genre:    "Action,Adventure,Sci-Fi",
		Country:  "United States,United Kingdom",
		Director: "Christopher Nolan",
		Cast:     "Leonardo DiCaprio,Joseph Gordon-Levitt",
		Kind:     "movie",
		CoverURL: "http://x/y.jpg",
		Plot:     "A thief who steals corporate secrets.",
		Synopsis: "The film begins on a beach.",
	}, rec)
}

func TestNormalize_NotFoundUsesQueryAndNotFoundDefaults(t *testing.T) {
	rec, missed := New(nil).Normalize("Some Unknown Film", nil)

	assert.Equal(t, "Some Unknown Film", rec.Title)
	for _, f := range domain.Fields[1:] {
		assert.Equal(t, "", rec.Get(f), "字段 %s 应为 not-found 默认值", f)
	}
	// not-found 的 rating 是 ""，不是字段缺失时的 "N/A"。
	assert.Equal(t, "", rec.Rating)
	assert.Len(t, missed, len(domain.Fields))
}

func TestNormalize_PlotFallsBackToFirstPlotEntry(t *testing.T) {
	raw := fullRaw()
	raw.PlotOutline = nil
	raw.Plot = []string{"  ", "First real plot.", "Second plot."}

	rec, missed := New(nil).Normalize("inception", raw)
	assert.Equal(t, "First real plot.", rec.Plot)
	assert.NotContains(t, missed, domain.FieldPlot)
}

func TestNormalize_CastLimitedToFirstFive(t *testing.T) {
	raw := fullRaw()
	raw.Cast = people("A", "", "B", "C", "D", "E", "F", "G")

	rec, _ := New(nil).Normalize("x", raw)
	assert.Equal(t, "A,B,C,D,E", rec.Cast)
	assert.LessOrEqual(t, len(strings.Split(rec.Cast, ",")), MaxCast)
}

func TestNormalize_MissingFieldsUseFieldMissingDefaults(t *testing.T) {
	raw := &domain.RawRecord{Title: sp("Heat")}

	rec, missed := New(nil).Normalize("heat", raw)
	assert.Equal(t, "Heat", rec.Title)
	assert.Equal(t, "N/A", rec.Rating)
	assert.Equal(t, "", rec.Year)
	assert.Equal(t, "", rec.Cast)
	assert.Equal(t, "", rec.Plot)
	assert.Len(t, missed, len(domain.Fields)-1)
	assert.NotContains(t, missed, domain.FieldTitle)
}

func TestNormalize_MissingTitleFallsBackToQuery(t *testing.T) {
	raw := fullRaw()
	raw.Title = sp("   ")

	rec, missed := New(nil).Normalize("inception", raw)
	assert.Equal(t, "inception", rec.Title)
	assert.Equal(t, []domain.Field{domain.FieldTitle}, missed)
}

func TestNormalize_EmptyListsCountAsMissing(t *testing.T) {
	raw := fullRaw()
	raw.Genres = []string{"", " "}
	raw.Directors = people("")

	rec, missed := New(nil).Normalize("x", raw)
	assert.Equal(t, "", rec.Genre)
	assert.Equal(t, "", rec.Director)
	assert.Contains(t, missed, domain.FieldGenre)
	assert.Contains(t, missed, domain.FieldDirector)
}

func TestNormalize_OverridesChangeOnlyConfiguredFields(t *testing.T) {
	n := Normalizer{Defaults: BuiltinDefaults().With(
		map[domain.Field]string{domain.FieldRating: "?"},
		map[domain.Field]string{domain.FieldYear: "unknown"},
	)}

	nf, _ := n.Normalize("q", nil)
	assert.Equal(t, "?", nf.Rating)
	assert.Equal(t, "", nf.Year)

	fm, _ := n.Normalize("q", &domain.RawRecord{Title: sp("Q")})
	assert.Equal(t, "unknown", fm.Year)
	assert.Equal(t, "N/A", fm.Rating)
	assert.Equal(t, "", fm.Genre)
}

func TestNormalize_LogsEachMissingField(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var buf bytes.Buffer
	n := New(logx.NewManager(&buf, logx.VERBOSE).Get("normalize"))
	n.Normalize("heat", &domain.RawRecord{Title: sp("Heat"), Year: sp("1995")})

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"heat" 缺少字段 rating`)
	assert.NotContains(t, out, "缺少字段 year")
}

func TestBuiltinDefaults_Asymmetry(t *testing.T) {
	d := BuiltinDefaults()
	assert.Equal(t, "N/A", d.FieldMissing[domain.FieldRating])
	assert.Equal(t, "", d.NotFound[domain.FieldRating])
	for _, f := range domain.Fields {
		if f == domain.FieldRating {
			continue
		}
		assert.Equal(t, "", d.FieldMissing[f])
		assert.Equal(t, "", d.NotFound[f])
	}
}
