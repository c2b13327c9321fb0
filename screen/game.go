// Package screen hosts a viewer in an ebiten window.
package screen

import (
	"image"
	"image/color"
	"strings"

	"github.com/echoflaresat/panocam/viewer"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// WheelLineHeight converts ebiten wheel notches to pixel deltas.
const WheelLineHeight = 100

const (
	hudHeight   = 56
	panelMargin = 24
)

var (
	backdrop   = color.RGBA{0x10, 0x10, 0x14, 0xff}
	frameColor = color.RGBA{0x80, 0x80, 0x90, 0xff}
)

// Game runs one viewer. It tears the viewer down and stops the game once
// the viewer asks to close.
type Game struct {
	viewer  *viewer.Viewer
	queue   *viewer.FrameQueue
	surface *Surface

	window  image.Rectangle
	closing bool
}

// NewGame wraps a viewer built on queue and surface.
func NewGame(v *viewer.Viewer, queue *viewer.FrameQueue, surface *Surface) *Game {
	return &Game{viewer: v, queue: queue, surface: surface}
}

// RequestClose makes the next Update tear down and terminate. Use it as
// the viewer's OnClose.
func (g *Game) RequestClose() {
	g.closing = true
}

// inputState is the raw input of one frame.
type inputState struct {
	dismiss  bool // Escape or Q
	pressed  bool // left button just pressed
	held     bool
	released bool
	wheelY   float64
	cursor   image.Point
}

func (g *Game) pollInput() inputState {
	_, wheelY := ebiten.Wheel()
	mx, my := ebiten.CursorPosition()
	return inputState{
		dismiss:  inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape),
		pressed:  inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		held:     ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		released: inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft),
		wheelY:   wheelY,
		cursor:   image.Pt(mx, my),
	}
}

func (g *Game) Update() error {
	g.surface.Flush()

	if g.closing {
		g.viewer.Teardown()
		g.surface.Flush()
		return ebiten.Termination
	}

	g.handleInput(g.pollInput())
	g.queue.RunFrame()
	return nil
}

func (g *Game) handleInput(in inputState) {
	if in.dismiss {
		g.viewer.Dismiss()
		return
	}

	panel := g.surface.Panel()
	local := in.cursor.Sub(panel.Min)
	x, y := float64(local.X), float64(local.Y)

	if in.pressed {
		if in.cursor.In(panel) {
			g.viewer.PointerDown(x, y)
		} else {
			g.viewer.Dismiss()
			return
		}
	}
	if in.held && g.viewer.Dragging() {
		if in.cursor.In(g.window) {
			g.viewer.PointerMove(x, y)
		} else {
			g.viewer.PointerLeave()
		}
	}
	if in.released {
		g.viewer.PointerUp()
	}
	if in.wheelY != 0 {
		g.viewer.Wheel(-in.wheelY * WheelLineHeight)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backdrop)
	g.surface.DrawTo(screen)

	p := g.surface.Panel()
	if !p.Empty() {
		vector.StrokeRect(screen,
			float32(p.Min.X)-1, float32(p.Min.Y)-1, float32(p.Dx())+2, float32(p.Dy())+2,
			1, frameColor, false)
	}
	ebitenutil.DebugPrintAt(screen, strings.Join(g.viewer.HUD(), "\n"), panelMargin, 4)
}

// Layout keeps a 1:1 pixel mapping and insets the panel below the HUD.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.window = image.Rect(0, 0, outsideWidth, outsideHeight)
	panel := image.Rect(
		panelMargin, hudHeight,
		outsideWidth-panelMargin, outsideHeight-panelMargin,
	)
	if panel.Dx() <= 0 || panel.Dy() <= 0 {
		panel = image.Rectangle{}
	}
	if g.surface.SetPanel(panel) {
		g.viewer.Resize()
	}
	return outsideWidth, outsideHeight
}
