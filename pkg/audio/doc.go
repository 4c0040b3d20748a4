// Package audio is an umbrella for the audio sub-packages:
//
//   - pcm: L16 PCM format handling and sample conversion
//   - mfcc: mel-frequency cepstral feature extraction
//   - resampler: sample-rate and channel conversion
package audio
