package geo

import (
	"testing"

	"github.com/courierhq/dispatchd/core/model"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	p := model.LatLng{Lat: 48.8566, Lng: 2.3522}
	if d := DistanceKm(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKm_ParisLyon(t *testing.T) {
	paris := model.LatLng{Lat: 48.8566, Lng: 2.3522}
	lyon := model.LatLng{Lat: 45.7640, Lng: 4.8357}
	d := DistanceKm(paris, lyon)
	if d < 380 || d > 410 {
		t.Fatalf("unexpected distance: %f", d)
	}
}

func TestWithinKm(t *testing.T) {
	center := model.LatLng{Lat: 48.8566, Lng: 2.3522}
	near := model.LatLng{Lat: 48.86, Lng: 2.36}
	far := model.LatLng{Lat: 45.7640, Lng: 4.8357}
	if !WithinKm(center, near, 5) {
		t.Errorf("near point should be within 5km")
	}
	if WithinKm(center, far, 5) {
		t.Errorf("far point should not be within 5km")
	}
}
