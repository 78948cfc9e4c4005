package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"briefbot/internal/config"
	"briefbot/internal/llm"
	logx "briefbot/pkg/logx"
	"briefbot/pkg/tgtext"
)

const (
	owmBaseURL    = "https://api.openweathermap.org"
	owmGeoBaseURL = "http://api.openweathermap.org"
)

type weatherConfig struct {
	APIKey string  `json:"api_key"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Lang   string  `json:"lang,omitempty"` // localized names/descriptions, default "kr"

	// Office briefing: runs after a successful home briefing on working days
	// when the home location name contains HomeMarker.
	OfficeLat  float64 `json:"office_lat,omitempty"`
	OfficeLon  float64 `json:"office_lon,omitempty"`
	HomeMarker string  `json:"home_marker,omitempty"`

	BaseURL    string `json:"base_url,omitempty"`     // override for tests
	GeoBaseURL string `json:"geo_base_url,omitempty"` // override for tests
}

// Weather fetches OpenWeatherMap data, grades air quality, runs the LLM
// briefing, and delivers an HTML weather report.
type Weather struct {
	deps Deps
	cfg  weatherConfig
	now  func() time.Time
}

func NewWeather(deps Deps) *Weather {
	return &Weather{deps: deps, now: time.Now}
}

func (w *Weather) Name() string { return "weather" }

func (w *Weather) Configure(raw json.RawMessage) error {
	cfg, err := config.DecodeJobConfig[weatherConfig](raw)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return errors.New("weather: api_key required")
	}
	if cfg.Lat == 0 && cfg.Lon == 0 {
		return errors.New("weather: lat/lon required")
	}
	if cfg.Lang == "" {
		cfg.Lang = "kr"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = owmBaseURL
	}
	if cfg.GeoBaseURL == "" {
		cfg.GeoBaseURL = owmGeoBaseURL
	}
	w.cfg = cfg
	return nil
}

func (w *Weather) Run(ctx context.Context) error {
	location, err := w.brief(ctx, w.cfg.Lat, w.cfg.Lon)
	if err != nil {
		return err
	}

	if w.cfg.HomeMarker == "" || (w.cfg.OfficeLat == 0 && w.cfg.OfficeLon == 0) {
		return nil
	}
	if w.deps.Holidays.IsHoliday(w.now()) {
		w.deps.Log.Debug("holiday; skipping office briefing")
		return nil
	}
	if !strings.Contains(location, w.cfg.HomeMarker) {
		w.deps.Log.Debug("not at home; skipping office briefing", logx.String("location", location))
		return nil
	}
	if _, err := w.brief(ctx, w.cfg.OfficeLat, w.cfg.OfficeLon); err != nil {
		return fmt.Errorf("office briefing: %w", err)
	}
	return nil
}

// brief builds and delivers one briefing, returning the resolved location name.
func (w *Weather) brief(ctx context.Context, lat, lon float64) (string, error) {
	location, err := w.locationName(ctx, lat, lon)
	if err != nil {
		return "", err
	}

	var oc oneCallResponse
	if err := w.getJSON(ctx, w.weatherURL(lat, lon), &oc); err != nil {
		return "", err
	}
	if len(oc.Daily) == 0 {
		return "", errors.New("weather: empty daily forecast")
	}

	var pol pollutionResponse
	if err := w.getJSON(ctx, w.pollutionURL(lat, lon), &pol); err != nil {
		return "", err
	}
	if len(pol.List) == 0 {
		return "", errors.New("weather: empty air pollution data")
	}

	b := buildBriefing(location, &oc, &pol)
	brief, err := w.deps.LLM.WeatherBrief(ctx, b)
	if err != nil {
		return "", fmt.Errorf("weather briefing llm: %w", err)
	}
	if brief.Location == "" {
		brief.Location = location
	}

	msg := formatBriefing(b, brief)
	if err := w.deps.notifyHTML(ctx, msg); err != nil {
		return "", fmt.Errorf("weather delivery: %w", err)
	}
	return location, nil
}

func (w *Weather) locationName(ctx context.Context, lat, lon float64) (string, error) {
	var results []struct {
		Name       string            `json:"name"`
		LocalNames map[string]string `json:"local_names"`
	}
	if err := w.getJSON(ctx, w.geoURL(lat, lon), &results); err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", errors.New("weather: reverse geocoding returned no results")
	}
	r := results[0]
	if name, ok := r.LocalNames[w.cfg.Lang]; ok && name != "" {
		return name, nil
	}
	return r.Name, nil
}

func (w *Weather) getJSON(ctx context.Context, u string, v any) error {
	body, err := w.deps.Fetch.Get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("weather: decode %s: %w", u, err)
	}
	return nil
}

func (w *Weather) geoURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("lat", trimFloat(lat))
	q.Set("lon", trimFloat(lon))
	q.Set("limit", "1")
	q.Set("appid", w.cfg.APIKey)
	return w.cfg.GeoBaseURL + "/geo/1.0/reverse?" + q.Encode()
}

func (w *Weather) weatherURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("lat", trimFloat(lat))
	q.Set("lon", trimFloat(lon))
	q.Set("appid", w.cfg.APIKey)
	q.Set("units", "metric")
	q.Set("lang", w.cfg.Lang)
	q.Set("exclude", "minutely,hourly")
	return w.cfg.BaseURL + "/data/3.0/onecall?" + q.Encode()
}

func (w *Weather) pollutionURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("lat", trimFloat(lat))
	q.Set("lon", trimFloat(lon))
	q.Set("appid", w.cfg.APIKey)
	return w.cfg.BaseURL + "/data/2.5/air_pollution?" + q.Encode()
}

func trimFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", f), "0"), ".")
}

// --- OpenWeatherMap wire types ---

type oneCallResponse struct {
	Current struct {
		FeelsLike  float64 `json:"feels_like"`
		Visibility int     `json:"visibility"`
	} `json:"current"`
	Daily []struct {
		Summary string `json:"summary"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Temp struct {
			Min float64 `json:"min"`
			Max float64 `json:"max"`
		} `json:"temp"`
		FeelsLike struct {
			Day   float64 `json:"day"`
			Eve   float64 `json:"eve"`
			Night float64 `json:"night"`
		} `json:"feels_like"`
		Humidity  int      `json:"humidity"`
		WindSpeed float64  `json:"wind_speed"`
		WindGust  *float64 `json:"wind_gust,omitempty"`
		Rain      float64  `json:"rain"`
		Snow      float64  `json:"snow"`
		Pop       float64  `json:"pop"`
		UVI       float64  `json:"uvi"`
	} `json:"daily"`
	Alerts []struct {
		Event string `json:"event"`
	} `json:"alerts"`
}

type pollutionResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components map[string]float64 `json:"components"`
	} `json:"list"`
}

// Briefing is the combined weather + air quality snapshot handed to the LLM
// and rendered into the Telegram message.
type Briefing struct {
	Location      string  `json:"location"`
	Summary       string  `json:"summary"`
	Description   string  `json:"weather_description"`
	FeelsNow      float64 `json:"feels_like_now_c"`
	FeelsDay      float64 `json:"feels_like_day_c"`
	FeelsEve      float64 `json:"feels_like_eve_c"`
	FeelsNight    float64 `json:"feels_like_night_c"`
	TempMin       float64 `json:"temp_min_c"`
	TempMax       float64 `json:"temp_max_c"`
	Humidity      int     `json:"humidity_pct"`
	Wind          string  `json:"wind_mps"`
	RainMM        float64 `json:"rain_mm"`
	SnowMM        float64 `json:"snow_mm"`
	PrecipProb    float64 `json:"precip_prob_pct"`
	UVI           float64 `json:"uvi"`
	VisibilityM   int     `json:"visibility_m"`
	Alerts        string  `json:"alerts"`
	AQI           string  `json:"aqi"`
	PM25          string  `json:"pm2_5"`
	PM10          string  `json:"pm10"`
	O3            string  `json:"o3"`
	CO            string  `json:"co"`
	NO2           string  `json:"no2"`
	SO2           string  `json:"so2"`
	NO            string  `json:"no"`
	NH3           string  `json:"nh3"`
}

func buildBriefing(location string, oc *oneCallResponse, pol *pollutionResponse) Briefing {
	today := oc.Daily[0]
	air := pol.List[0]
	c := air.Components

	wind := trimFloat(today.WindSpeed)
	if today.WindGust != nil {
		wind = fmt.Sprintf("%s (최대 %s)", wind, trimFloat(*today.WindGust))
	}

	desc := ""
	if len(today.Weather) > 0 {
		desc = today.Weather[0].Description
	}

	var alerts []string
	for _, a := range oc.Alerts {
		alerts = append(alerts, a.Event)
	}

	return Briefing{
		Location:    location,
		Summary:     today.Summary,
		Description: desc,
		FeelsNow:    oc.Current.FeelsLike,
		FeelsDay:    today.FeelsLike.Day,
		FeelsEve:    today.FeelsLike.Eve,
		FeelsNight:  today.FeelsLike.Night,
		TempMin:     today.Temp.Min,
		TempMax:     today.Temp.Max,
		Humidity:    today.Humidity,
		Wind:        wind,
		RainMM:      today.Rain,
		SnowMM:      today.Snow,
		PrecipProb:  today.Pop * 100,
		UVI:         today.UVI,
		VisibilityM: oc.Current.Visibility,
		Alerts:      strings.Join(alerts, ", "),
		AQI:         fmt.Sprintf("%d (%s)", air.Main.AQI, aqiLabel(air.Main.AQI)),
		PM25:        gradedValue(c["pm2_5"], pm25Thresholds),
		PM10:        gradedValue(c["pm10"], pm10Thresholds),
		O3:          gradedValue(c["o3"], o3Thresholds),
		CO:          gradedValue(c["co"], coThresholds),
		NO2:         gradedValue(c["no2"], no2Thresholds),
		SO2:         gradedValue(c["so2"], so2Thresholds),
		NO:          fmt.Sprintf("%.2f", c["no"]),
		NH3:         fmt.Sprintf("%.2f", c["nh3"]),
	}
}

// Grade labels follow the OWM 1..5 air quality index.
var gradeLabels = [5]string{"좋음", "보통", "경계", "나쁨", "매우 나쁨"}

// Per-pollutant μg/m³ thresholds separating the five grades.
var (
	pm25Thresholds = [4]float64{10, 25, 50, 75}
	pm10Thresholds = [4]float64{20, 50, 100, 200}
	so2Thresholds  = [4]float64{20, 80, 250, 350}
	no2Thresholds  = [4]float64{40, 70, 150, 200}
	o3Thresholds   = [4]float64{60, 100, 140, 180}
	coThresholds   = [4]float64{4400, 9400, 12400, 15400}
)

func pollutantGrade(value float64, thresholds [4]float64) string {
	for i, t := range thresholds {
		if value < t {
			return gradeLabels[i]
		}
	}
	return gradeLabels[4]
}

func gradedValue(value float64, thresholds [4]float64) string {
	return fmt.Sprintf("%.2f μg/m³ (%s)", value, pollutantGrade(value, thresholds))
}

func aqiLabel(aqi int) string {
	if aqi >= 1 && aqi <= 5 {
		return gradeLabels[aqi-1]
	}
	return "N/A"
}

// formatBriefing renders the Telegram HTML message: header, LLM summary and
// suggestion, alert block when present, weather and air sections, and a
// spoiler-wrapped details section.
func formatBriefing(b Briefing, brief llm.Brief) string {
	sep := tgtext.Raw(strings.Repeat("-", 25))

	sections := []tgtext.H{
		tgtext.JoinH("\n",
			tgtext.B(strings.TrimSpace(brief.Location)+" 날씨 브리핑")+" 🌦",
			tgtext.I(brief.Summary),
		),
		tgtext.B(brief.Suggestion),
	}

	if brief.Alert != "" {
		sections = append(sections, tgtext.JoinH("\n", tgtext.B("🚨 경보 🚨"), tgtext.I(brief.Alert)))
	}
	sections = append(sections, sep)

	weather := []tgtext.H{
		tgtext.B("오늘의 날씨") + " 🌡️",
		"• "+tgtext.B("날씨")+": "+tgtext.Esc(b.Description),
		"• "+tgtext.B("기온")+": "+tgtext.Esc(fmt.Sprintf("%.1f°C / %.1f°C", b.TempMin, b.TempMax)),
		"• "+tgtext.B("현재 체감")+": "+tgtext.Esc(fmt.Sprintf("%.1f°C", b.FeelsNow)),
		"• "+tgtext.B("강수 확률")+": "+tgtext.Esc(fmt.Sprintf("%.0f%%", b.PrecipProb)),
	}
	if b.RainMM > 0 {
		weather = append(weather, "• "+tgtext.B("강우량")+": "+tgtext.Esc(fmt.Sprintf("%.1fmm", b.RainMM)))
	}
	if b.SnowMM > 0 {
		weather = append(weather, "• "+tgtext.B("강설량")+": "+tgtext.Esc(fmt.Sprintf("%.1fmm", b.SnowMM)))
	}
	sections = append(sections, tgtext.JoinH("\n", weather...))

	sections = append(sections, tgtext.JoinH("\n",
		tgtext.B("대기 질")+" 🍃",
		"• "+tgtext.B("종합")+": "+tgtext.Esc(b.AQI),
		"• "+tgtext.B("미세(PM2.5)")+": "+tgtext.Esc(b.PM25),
		"• "+tgtext.B("초미세(PM10)")+": "+tgtext.Esc(b.PM10),
		"• "+tgtext.B("오존(O3)")+": "+tgtext.Esc(b.O3),
	))

	details := tgtext.JoinH("\n",
		tgtext.B("세부 정보 (날씨)"),
		"• 자외선 (UVI): "+tgtext.Esc(fmt.Sprintf("%.1f", b.UVI)),
		"• 습도: "+tgtext.Esc(fmt.Sprintf("%d%%", b.Humidity)),
		"• 바람: "+tgtext.Esc(b.Wind),
		"• 오늘 체감: "+tgtext.Esc(fmt.Sprintf("낮 %.1f / 저녁 %.1f / 밤 %.1f", b.FeelsDay, b.FeelsEve, b.FeelsNight)),
		"• 가시거리: "+tgtext.Esc(fmt.Sprintf("%dm", b.VisibilityM)),
	) + "\n\n" + tgtext.JoinH("\n",
		tgtext.B("세부 정보 (대기)"),
		"• CO: "+tgtext.Esc(b.CO),
		"• NO2: "+tgtext.Esc(b.NO2),
		"• SO2: "+tgtext.Esc(b.SO2),
		"• NO: "+tgtext.Esc(b.NO),
		"• NH3: "+tgtext.Esc(b.NH3),
	)
	sections = append(sections, sep, tgtext.SpoilerH(details))

	return string(tgtext.JoinH("\n\n", sections...))
}
