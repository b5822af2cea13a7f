// Package instance makes sure only one dashboard owns the audio device.
package instance
