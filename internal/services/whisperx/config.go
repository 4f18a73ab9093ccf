package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the WhisperX model to use (e.g., "small").
	Model string
	// Device is "auto", "cpu" or "cuda". Auto lets WhisperX decide.
	Device string
	// ComputeType is passed through when set (e.g., "int8", "float16").
	ComputeType string
	// CacheDir is exported as the model download cache when set.
	CacheDir string
	// FFprobeBinary inspects media before extraction.
	FFprobeBinary string
}

// WhisperX configuration constants.
const (
	DefaultModel    = "small"
	DeviceAuto      = "auto"
	CUDADevice      = "cuda"
	CUDAIndexURL    = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL    = "https://pypi.org/simple"
	BeamSize        = "5"
	OutputFormat    = "json"
	VADMethodSilero = "silero"
)

// Command names for external tools.
const (
	UVXCommand     = "uvx"
	FFmpegCommand  = "ffmpeg"
	FFprobeCommand = "ffprobe"
)
