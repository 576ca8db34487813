package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/ewilliams-labs/animeterminal/internal/core/domain"
	"github.com/ewilliams-labs/animeterminal/internal/logging"
)

const maxRequestBody = 64 << 10

// recommendationRequest is the quiz submission. Every field is optional but
// at least one must carry a value.
type recommendationRequest struct {
	FavoriteAnime string   `json:"favoriteAnime" validate:"max=200"`
	Vibe          string   `json:"vibe" validate:"omitempty,oneof=epic relaxing funny dark"`
	Genres        []string `json:"genres" validate:"max=3,dive,max=40"`
	Dealbreakers  []string `json:"dealbreakers" validate:"max=4,dive,oneof=slow complex violence old"`
	Keywords      string   `json:"keywords" validate:"max=500"`
}

// preferences normalizes the request so validation sees trimmed,
// lower-cased enum values and no blank list entries.
func (req recommendationRequest) preferences() (domain.Preferences, recommendationRequest) {
	prefs := domain.Preferences{
		FavoriteAnime: req.FavoriteAnime,
		Vibe:          domain.Vibe(req.Vibe),
		Genres:        req.Genres,
		Dealbreakers: lo.Map(req.Dealbreakers, func(d string, _ int) domain.Dealbreaker {
			return domain.Dealbreaker(d)
		}),
		Keywords: req.Keywords,
	}.Normalize()

	return prefs, recommendationRequest{
		FavoriteAnime: prefs.FavoriteAnime,
		Vibe:          string(prefs.Vibe),
		Genres:        prefs.Genres,
		Dealbreakers: lo.Map(prefs.Dealbreakers, func(d domain.Dealbreaker, _ int) string {
			return string(d)
		}),
		Keywords: prefs.Keywords,
	}
}

type recommendationResponse struct {
	Success         bool            `json:"success"`
	Recommendations []mediaResponse `json:"recommendations"`
	Count           int             `json:"count"`
	Timestamp       time.Time       `json:"timestamp"`
}

type mediaTitle struct {
	English string `json:"english,omitempty"`
	Romaji  string `json:"romaji,omitempty"`
	Native  string `json:"native,omitempty"`
}

type mediaCover struct {
	Large  string `json:"large,omitempty"`
	Medium string `json:"medium,omitempty"`
}

type mediaDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

type studioNode struct {
	Name string `json:"name"`
}

type studioConnection struct {
	Nodes []studioNode `json:"nodes"`
}

// mediaResponse mirrors the AniList Media object the terminal UI renders.
type mediaResponse struct {
	ID           int              `json:"id"`
	Title        mediaTitle       `json:"title"`
	CoverImage   mediaCover       `json:"coverImage"`
	AverageScore *int             `json:"averageScore"`
	Genres       []string         `json:"genres"`
	SeasonYear   *int             `json:"seasonYear"`
	Episodes     *int             `json:"episodes"`
	Status       string           `json:"status,omitempty"`
	Format       string           `json:"format,omitempty"`
	Description  string           `json:"description,omitempty"`
	StartDate    mediaDate        `json:"startDate"`
	Studios      studioConnection `json:"studios"`
}

func toMediaResponse(m domain.MediaRecord) mediaResponse {
	genres := m.Genres
	if genres == nil {
		genres = []string{}
	}
	return mediaResponse{
		ID: m.ID,
		Title: mediaTitle{
			English: m.TitleEnglish,
			Romaji:  m.TitleRomaji,
			Native:  m.TitleNative,
		},
		CoverImage: mediaCover{
			Large:  m.CoverImageLarge,
			Medium: m.CoverImageMedium,
		},
		AverageScore: m.AverageScore,
		Genres:       genres,
		SeasonYear:   m.SeasonYear,
		Episodes:     m.Episodes,
		Status:       m.Status,
		Format:       m.Format,
		Description:  m.Description,
		StartDate: mediaDate{
			Year:  m.StartDate.Year,
			Month: m.StartDate.Month,
			Day:   m.StartDate.Day,
		},
		Studios: studioConnection{
			Nodes: lo.Map(m.Studios, func(name string, _ int) studioNode {
				return studioNode{Name: name}
			}),
		},
	}
}

// Recommend handles POST /api/recommendations.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, r, http.StatusUnsupportedMediaType, codeUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req recommendationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writePipelineError(w, r, domain.NewError(domain.KindValidation, "Request body must be a JSON object", err))
		return
	}

	prefs, normalized := req.preferences()
	if err := h.validate.Struct(normalized); err != nil {
		h.writePipelineError(w, r, domain.NewError(domain.KindValidation, validationMessage(err), err))
		return
	}

	log := logging.Ctx(r.Context())
	log.Info().
		Bool("favorite", prefs.FavoriteAnime != "").
		Str("vibe", string(prefs.Vibe)).
		Strs("genres", prefs.Genres).
		Int("dealbreakers", len(prefs.Dealbreakers)).
		Msg("rest: recommendation request")

	records, err := h.svc.Recommend(r.Context(), prefs)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(domain.KindOf(err))).Msg("rest: recommendation failed")
		h.writePipelineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendationResponse{
		Success:         true,
		Recommendations: lo.Map(records, func(m domain.MediaRecord, _ int) mediaResponse { return toMediaResponse(m) }),
		Count:           len(records),
		Timestamp:       h.now().UTC(),
	})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage turns the first field error into a sentence the UI can show.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s accepts at most %s entries", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
