// Package audio groups the audio front end of the fingerprinter:
//
//   - decode: file decoders (WAV, MP3, FLAC, Ogg Vorbis) and tag reading
//   - resampler: sample-rate conversion to the analysis rate
//   - chroma: the frame, chroma, filter and normalize stages that turn
//     samples into a feature image
package audio
