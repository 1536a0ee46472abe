package notifier

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"TrendChannel/internal/calculator"
	"TrendChannel/internal/model"
	"TrendChannel/internal/trend"
)

const timeLayout = "2006-01-02 15:04"

var positionLabels = map[model.BandPosition]string{
	model.BelowBand:  "下轨下方",
	model.InsideBand: "通道内",
	model.AboveBand:  "上轨上方",
}

// FormatFailure renders a failure notice. The error text is escaped, since
// fetch errors can carry raw HTML response bodies.
func FormatFailure(title string, err error) string {
	return fmt.Sprintf("❌ %s: %s", title, escapeErr(err))
}

func escapeErr(err error) string {
	return html.EscapeString(err.Error())
}

// FormatSignalReport formats a strategy signal into a Telegram message.
func FormatSignalReport(sig *model.TrendSignal) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>TrendChannel 趋势通道</b> | %s %s\n\n", html.EscapeString(sig.Symbol), sig.At.Format(timeLayout)))
	b.WriteString(fmt.Sprintf("策略: %s (%s)\n", html.EscapeString(sig.Strategy), sig.TriggerType))
	b.WriteString(fmt.Sprintf("最新收盘: %.2f\n\n", sig.LastClose))

	b.WriteString("📈 <b>周期明细:</b>\n")
	for _, p := range sig.Periods {
		if p.Err != nil && p.Direction.Label == "" {
			b.WriteString(fmt.Sprintf("  %s: ❌ %s\n", p.Period, escapeErr(p.Err)))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s: %s (角度 %+.1f%%) | %s\n",
			p.Period, p.Direction.Label, p.Band.AnglePercent, positionLabels[p.Position]))
		b.WriteString(fmt.Sprintf("    置信度 %.1f%% | 下轨 %.2f | 上轨 %.2f | 回归斜率 %+.4f\n",
			p.Band.Middle.ConfidencePercent, p.Band.Lower.YEnd, p.Band.Upper.YEnd, p.RegressionSlope))
		if p.Err != nil {
			b.WriteString("    ⚠️ 通道未能展开，上下轨与中轨重合\n")
		}
	}

	if sig.WarningMsg != "" {
		b.WriteString(fmt.Sprintf("\n%s\n", sig.WarningMsg))
	}
	return b.String()
}

// FormatZigZagReport formats a zig-zag decomposition.
func FormatZigZagReport(symbol string, res trend.Result) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("〰️ <b>分段趋势</b> | %s %s\n\n", html.EscapeString(symbol), time.UnixMilli(res.At).Format(timeLayout)))
	if res.Err != nil {
		b.WriteString(FormatFailure("计算失败", res.Err) + "\n")
		return b.String()
	}
	for _, o := range res.Outputs {
		if o.Err != nil {
			b.WriteString(fmt.Sprintf("  %s: ❌ %s\n", o.Label, escapeErr(o.Err)))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s %s → %s: %.2f → %.2f (角度 %+.1f%%, 置信度 %.1f%%)\n",
			o.Label,
			time.UnixMilli(o.Window.XStart).Format("15:04"),
			time.UnixMilli(o.Window.XEnd).Format("15:04"),
			o.Band.Middle.YStart, o.Band.Middle.YEnd,
			o.Band.AnglePercent, o.Band.Middle.ConfidencePercent))
	}
	return b.String()
}

// FormatTrendResult formats a single-band computation such as a period request.
func FormatTrendResult(symbol string, res trend.Result) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📐 <b>趋势拟合</b> | %s %s\n\n", html.EscapeString(symbol), time.UnixMilli(res.At).Format(timeLayout)))
	if res.Err != nil && !errors.Is(res.Err, calculator.ErrBandNotWidened) {
		b.WriteString(FormatFailure("计算失败", res.Err) + "\n")
		return b.String()
	}
	for _, o := range res.Outputs {
		band := o.Band
		b.WriteString(fmt.Sprintf("%s (%d 根K线)\n", o.Label, o.Candles))
		b.WriteString(fmt.Sprintf("  中轨: %.2f → %.2f (置信度 %.1f%%)\n", band.Middle.YStart, band.Middle.YEnd, band.Middle.ConfidencePercent))
		if band.Widened {
			b.WriteString(fmt.Sprintf("  上轨: %.2f → %.2f\n", band.Upper.YStart, band.Upper.YEnd))
			b.WriteString(fmt.Sprintf("  下轨: %.2f → %.2f\n", band.Lower.YStart, band.Lower.YEnd))
		}
		if band.Middle.XEnd != o.Window.XEnd {
			b.WriteString(fmt.Sprintf("  延伸至 %s\n", time.UnixMilli(band.Middle.XEnd).Format(timeLayout)))
		}
		b.WriteString(fmt.Sprintf("  角度: %+.1f%%\n", band.AnglePercent))
	}
	if res.Err != nil {
		b.WriteString("⚠️ 通道未能展开，上下轨与中轨重合\n")
	}
	return b.String()
}
