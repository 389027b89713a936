package config

const (
	defaultDataDir   = "~/.local/share/splice"
	defaultLogDir    = "~/.local/share/splice/logs"
	defaultWorkDir   = "~/.local/share/splice/work"
	defaultOutputDir = "~/videos/splice"

	defaultMaxActiveJobs   = 4
	defaultFPS             = 30.0
	defaultProgressBucket  = 5.0
	defaultHistoryRetained = 500

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultHardwareAccel = "auto"

	defaultMaxPreviewEntries  = 256
	defaultMaxMetadataEntries = 512
	defaultMaxRenderEntries   = 64
	defaultMemoryBudgetMB     = 512
	defaultPreviewTTLMinutes  = 30
	defaultMetadataTTLMinutes = 120
	defaultRenderTTLMinutes   = 240

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
		},
		Render: Render{
			MaxActiveJobs:   defaultMaxActiveJobs,
			DefaultFPS:      defaultFPS,
			ProgressBucket:  defaultProgressBucket,
			HistoryRetained: defaultHistoryRetained,
		},
		Encoder: Encoder{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			HardwareAccel: defaultHardwareAccel,
		},
		Cache: Cache{
			MaxPreviewEntries:  defaultMaxPreviewEntries,
			MaxMetadataEntries: defaultMaxMetadataEntries,
			MaxRenderEntries:   defaultMaxRenderEntries,
			MemoryBudgetMB:     defaultMemoryBudgetMB,
			PreviewTTLMinutes:  defaultPreviewTTLMinutes,
			MetadataTTLMinutes: defaultMetadataTTLMinutes,
			RenderTTLMinutes:   defaultRenderTTLMinutes,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Failure:        true,
		},
	}
}
