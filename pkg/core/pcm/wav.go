package pcm

import "encoding/binary"

// ToWAV wraps raw PCM audio data with a WAV header.
//
// Useful when assistant audio chunks collected from a realtime session
// should be saved to a file or handed to players that require WAV framing.
func ToWAV(pcmData []byte, sampleRate, bitsPerSample, channels int) []byte {
	dataLen := len(pcmData)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	// WAV header is 44 bytes
	header := make([]byte, 44)

	// RIFF chunk descriptor
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen)) // File size - 8
	copy(header[8:12], "WAVE")

	// fmt sub-chunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)                    // Sub-chunk size (16 for PCM)
	binary.LittleEndian.PutUint16(header[20:22], 1)                     // Audio format (1 = PCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))      // Number of channels
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))    // Sample rate
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))      // Byte rate
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))    // Block align
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample)) // Bits per sample

	// data sub-chunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen)) // Data size

	return append(header, pcmData...)
}

// ToWAVDefault wraps PCM data with a WAV header using the wire format
// defaults. Equivalent to ToWAV(pcmData, 24000, 16, 1).
func ToWAVDefault(pcmData []byte) []byte {
	return ToWAV(pcmData, SampleRate, 16, Channels)
}
