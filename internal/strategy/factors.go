package strategy

import (
	"fmt"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/model"
)

// bandPosition locates the close of c against the band lines at c's timestamp.
// Lines are extended along their fitted slope when c lies past the window.
func bandPosition(band model.TrendBand, w model.Window, c model.Candle) model.BandPosition {
	lower := lineAt(band.Lower, w.YStart, c.Timestamp)
	upper := lineAt(band.Upper, w.YStart, c.Timestamp)
	switch {
	case c.Close < lower:
		return model.BelowBand
	case c.Close > upper:
		return model.AboveBand
	default:
		return model.InsideBand
	}
}

func lineAt(l model.TrendLine, yRef float64, x int64) float64 {
	fitXEnd := l.FitXEnd
	if fitXEnd == 0 {
		fitXEnd = l.XEnd
	}
	return calculator.LineValue(l.A, l.B, l.XStart, fitXEnd, yRef, x)
}

// breakoutWarning reports the first period whose widened band the close has left.
// Un-widened bands never warn.
func breakoutWarning(periods []model.PeriodTrend) string {
	for _, p := range periods {
		if p.Err != nil || !p.Band.Widened {
			continue
		}
		switch p.Position {
		case model.AboveBand:
			return fmt.Sprintf("⚠️ 收盘价突破 %s 通道上轨", p.Period)
		case model.BelowBand:
			return fmt.Sprintf("⚠️ 收盘价跌破 %s 通道下轨", p.Period)
		}
	}
	return ""
}
