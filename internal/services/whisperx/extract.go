package whisperx

import (
	"fmt"
	"strconv"
)

// buildExtractArgs returns ffmpeg arguments that decode one audio stream to
// 16 kHz mono PCM, the input format WhisperX expects.
func buildExtractArgs(source string, audioIndex int, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:" + strconv.Itoa(audioIndex),
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func validateAudioIndex(audioIndex int) error {
	if audioIndex < 0 {
		return fmt.Errorf("extract audio: invalid audio stream index %d", audioIndex)
	}
	return nil
}
