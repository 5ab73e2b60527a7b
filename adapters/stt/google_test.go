package stt_test

import (
	"github.com/mojokb/ha-custom-stt/adapters/stt"
	"github.com/mojokb/ha-custom-stt/domain/repositories"
)

var _ repositories.SpeechToText = &stt.GoogleSpeechToText{}
