package tui

import (
	"fmt"
	"strings"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/telemetry"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	var b strings.Builder

	connStyle := lipgloss.NewStyle().Foreground(connectionColors[m.conn]).Bold(true)
	b.WriteString(titleStyle.Render("Rover dashboard"))
	b.WriteString("  ")
	b.WriteString(connStyle.Render("● " + m.conn.String()))
	if m.opts.Endpoint != "" {
		b.WriteString(helpStyle.Render("  " + m.opts.Endpoint))
	}
	b.WriteString("\n\n")

	var rows []string
	rows = append(rows, row("Status", statusStyle(m.status.Severity, m.status.Dimmed).Render(m.status.Text)))
	rows = append(rows, row("GPS", valueStyle.Render(telemetry.FormatGPS(m.telemetry.GPS))))
	rows = append(rows, row("Sensors", valueStyle.Render(telemetry.FormatEnvironmental(m.telemetry.Environmental))))
	rows = append(rows, row("Effects",
		flag("negative", m.negative)+"  "+flag("detection", m.detection)))
	rows = append(rows, row("Camera", m.cameraText()))
	frames := fmt.Sprintf("#%d  %dx%d source", m.frames.Seq, m.frames.SourceSize.X, m.frames.SourceSize.Y)
	if m.opts.Frames != nil {
		frames += fmt.Sprintf("  received %d  failed %d  skipped %d", m.stats.Received, m.stats.Failed, m.stats.Skipped)
	}
	rows = append(rows, row("Frames", valueStyle.Render(frames)))
	rows = append(rows, row("Detections", valueStyle.Render(fmt.Sprintf("%d objects", m.detected))))
	rows = append(rows, row("Drive", valueStyle.Render(fmt.Sprintf("%s  speed %d", m.driveText(), m.control.Speed))))
	if m.gallery != nil {
		g := m.gallery
		rows = append(rows, row("Gallery", valueStyle.Render(fmt.Sprintf(
			"%d images (%.1f MB)  %d with detections  %d today",
			g.TotalImages, g.TotalSizeMB, g.WithDetections, g.CreatedToday))))
	}
	b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	help := "arrows/wasd drive · space stop · +/- speed · n negative · o detection · c save"
	if m.opts.Gallery != nil {
		help += " · g gallery · t test alert"
	}
	help += " · q quit"
	b.WriteString(helpStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func flag(name string, on bool) string {
	if on {
		return onStyle.Render(name + " ON")
	}
	return offStyle.Render(name + " OFF")
}

func (m Model) cameraText() string {
	switch {
	case m.camera == nil:
		return offStyle.Render("unknown")
	case *m.camera:
		return onStyle.Render("ESP32 connected")
	default:
		return statusStyle(model.SeverityError, false).Render("ESP32 disconnected")
	}
}

func (m Model) driveText() string {
	if m.control.Direction == "" || m.control.Direction == model.Stop {
		return "stopped"
	}
	return string(m.control.Direction)
}
