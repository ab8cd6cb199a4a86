package service

import (
	"context"

	"careercoach-go/pkg/log"
	"careercoach-go/pkg/tts"
)

// SpeechSynthesizer 把面试官的语句转为音频。返回 nil 表示本轮没有语音，调用方照常继续。
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) []byte
}

type speechSynthesizer struct {
	client tts.Client
}

// NewSpeechSynthesizer 包装一个 TTS 客户端，失败时吞掉错误并只记录日志。
func NewSpeechSynthesizer(client tts.Client) SpeechSynthesizer {
	return &speechSynthesizer{client: client}
}

func (s *speechSynthesizer) Synthesize(ctx context.Context, text string) []byte {
	if s.client == nil || text == "" {
		return nil
	}
	audio, err := s.client.GenerateSpeech(ctx, text)
	if err != nil {
		log.Warnw("语音合成失败，本轮不返回音频", "error", err, "textLength", len(text))
		return nil
	}
	return audio
}
