package config

const (
	defaultSaveDir          = "~/lectern"
	defaultLogDir           = "~/.local/share/lectern/logs"
	defaultCASBaseURL       = "https://zjuam.zju.edu.cn/cas"
	defaultCoursesBaseURL   = "https://courses.zju.edu.cn"
	defaultClassroomBaseURL = "https://classroom.zju.edu.cn"
	defaultMediaBaseURL     = "https://tgmedia.cmc.zju.edu.cn"
	defaultSearchBaseURL    = "https://yjapi.cmc.zju.edu.cn"
	defaultRecordsBaseURL   = "http://zdbk.zju.edu.cn"
	defaultProbeURL         = "http://zdbk.zju.edu.cn/"
	defaultTenantCode       = "112"
	defaultUserAgent        = "Mozilla/5.0 (X11; Linux x86_64; rv:88.0) Gecko/20100101 Firefox/88.0"
	defaultMaxConcurrent    = 3
	defaultSubtitleFormat   = "srt"
	defaultLLMBaseURL       = "https://api.openai.com/v1/chat/completions"
	defaultLLMTemperature   = 0.2
	defaultLLMTimeout       = 60
	defaultLLMPrompt        = "You are a course teaching assistant. Summarize the key points, " +
		"focus areas, and difficulties of the lecture from the provided transcript. " +
		"Use structured Markdown."
	defaultNotifyTimeout = 10
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SaveDir: defaultSaveDir,
			LogDir:  defaultLogDir,
		},
		Portal: Portal{
			CASBaseURL:       defaultCASBaseURL,
			CoursesBaseURL:   defaultCoursesBaseURL,
			ClassroomBaseURL: defaultClassroomBaseURL,
			MediaBaseURL:     defaultMediaBaseURL,
			SearchBaseURL:    defaultSearchBaseURL,
			RecordsBaseURL:   defaultRecordsBaseURL,
			ProbeURL:         defaultProbeURL,
			TenantCode:       defaultTenantCode,
			UserAgent:        defaultUserAgent,
		},
		Download: Download{
			MaxConcurrent: defaultMaxConcurrent,
			ComposePDF:    true,
			SkipSynced:    true,
		},
		Subtitles: Subtitles{
			Languages: []string{"zh"},
			Format:    defaultSubtitleFormat,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Temperature:    defaultLLMTemperature,
			Prompt:         defaultLLMPrompt,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			ScoreChanges:   true,
			Errors:         true,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
