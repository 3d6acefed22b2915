package tracking

// NextAngle applies the fixed-step control law: if the face center is at
// least DeadZonePx from the frame center, step ServoStep degrees toward it
// (face right of center means a larger angle), clamped to
// [ServoMin, ServoMax]. It reports false when no command should be sent.
func NextAngle(cfg Config, current int, face BoundingBox, frameWidth int) (int, bool) {
	offset := face.CenterX() - frameWidth/2
	if abs(offset) < cfg.DeadZonePx {
		return current, false
	}

	next := current - cfg.ServoStep
	if offset > 0 {
		next = current + cfg.ServoStep
	}
	next = min(max(next, cfg.ServoMin), cfg.ServoMax)

	return next, next != current
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
