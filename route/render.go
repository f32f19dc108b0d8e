package route

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	wallColor       = color.RGBA{40, 40, 40, 255}
	nodeColor       = color.RGBA{70, 130, 180, 255}
	transitionColor = color.RGBA{218, 112, 30, 255}
	obstacleColor   = color.RGBA{178, 34, 34, 255}
	routeColor      = color.RGBA{34, 139, 34, 255}
	degradedColor   = color.RGBA{220, 20, 60, 255}
	positionColor   = color.RGBA{30, 80, 220, 255}
	labelColor      = color.RGBA{0, 0, 0, 255}
	edgeColor       = color.RGBA{200, 200, 200, 255}
)

// Renderer draws one floor with an optional route and position marker
type Renderer struct {
	Floor      *FloorPlan
	Path       *NavigationPath
	Position   *Location
	Accuracy   float64           // radius drawn around Position; 0 hides it
	Scale      float64           // millimeters per floor unit
	Padding    float64           // floor units
	Resolution canvas.Resolution // PNG resolution
	Labels     bool              // node ids on PNG output
}

// NewRenderer creates a renderer with default settings
func NewRenderer(fp *FloorPlan) *Renderer {
	return &Renderer{
		Floor:      fp,
		Scale:      5.0,
		Padding:    5.0,
		Resolution: canvas.DPMM(4),
		Labels:     true,
	}
}

// canvasRenderer is implemented by the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// frame maps floor coordinates onto the canvas
type frame struct {
	bound   orb.Bound
	scale   float64
	padding float64
	width   float64
	height  float64
}

func (f frame) at(p orb.Point) (float64, float64) {
	return (p[0]-f.bound.Min[0]+f.padding) * f.scale, (p[1]-f.bound.Min[1]+f.padding) * f.scale
}

func (r *Renderer) frame() (frame, error) {
	if r.Floor == nil {
		return frame{}, fmt.Errorf("render: no floor plan")
	}
	var extra []orb.Point
	if r.Path != nil {
		extra = append(extra, r.Path.FloorPoints(r.Floor.Floor)...)
	}
	if r.Position != nil && r.Position.Floor == r.Floor.Floor {
		extra = append(extra, r.Position.Point)
	}
	b := Bounds(r.Floor, extra...)
	scale := r.Scale
	if scale <= 0 {
		scale = 1
	}
	w := (b.Max[0] - b.Min[0] + 2*r.Padding) * scale
	h := (b.Max[1] - b.Min[1] + 2*r.Padding) * scale
	if w <= 0 || h <= 0 {
		return frame{}, fmt.Errorf("render: floor %d has no extent", r.Floor.Floor)
	}
	return frame{bound: b, scale: scale, padding: r.Padding, width: w, height: h}, nil
}

// RenderToSVG writes the floor as SVG
func (r *Renderer) RenderToSVG(w io.Writer) error {
	f, err := r.frame()
	if err != nil {
		return err
	}
	s := svg.New(w, f.width, f.height, nil)
	r.draw(s, f)
	return s.Close()
}

// RenderToPNG writes the floor as PNG
func (r *Renderer) RenderToPNG(w io.Writer) error {
	f, err := r.frame()
	if err != nil {
		return err
	}
	rast := rasterizer.New(f.width, f.height, r.Resolution, canvas.DefaultColorSpace)
	r.draw(rast, f)
	if r.Labels {
		r.drawLabels(rast, f)
	}
	return png.Encode(w, rast)
}

func (r *Renderer) draw(cr canvasRenderer, f frame) {
	bg := canvas.DefaultStyle
	bg.Fill = canvas.Paint{Color: canvas.White}
	cr.RenderPath(canvas.Rectangle(f.width, f.height), bg, canvas.Identity)

	wallStyle := canvas.DefaultStyle
	wallStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	wallStyle.Stroke = canvas.Paint{Color: wallColor}
	for _, wall := range r.Floor.Walls {
		wallStyle.StrokeWidth = math.Max(wall.Thickness, 0.3) * f.scale
		cp := &canvas.Path{}
		cp.MoveTo(f.at(wall.Start))
		cp.LineTo(f.at(wall.End))
		cr.RenderPath(cp, wallStyle, canvas.Identity)
	}

	g := NewGraph(r.Floor)
	edgeStyle := canvas.DefaultStyle
	edgeStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	edgeStyle.Stroke = canvas.Paint{Color: edgeColor}
	edgeStyle.StrokeWidth = 0.2 * f.scale
	for _, n := range g.Nodes() {
		for _, id := range g.Neighbors(n.ID) {
			if id < n.ID {
				continue
			}
			m, _ := g.Node(id)
			cp := &canvas.Path{}
			cp.MoveTo(f.at(n.Position))
			cp.LineTo(f.at(m.Position))
			cr.RenderPath(cp, edgeStyle, canvas.Identity)
		}
	}

	for _, n := range g.Nodes() {
		ns := canvas.DefaultStyle
		ns.Fill = canvas.Paint{Color: nodeFill(n)}
		ns.Stroke = canvas.Paint{Color: canvas.Transparent}
		x, y := f.at(n.Position)
		cr.RenderPath(canvas.Circle(0.6*f.scale).Translate(x, y), ns, canvas.Identity)
	}

	if r.Path != nil {
		pts := r.Path.FloorPoints(r.Floor.Floor)
		if len(pts) > 1 {
			rs := canvas.DefaultStyle
			rs.Fill = canvas.Paint{Color: canvas.Transparent}
			rs.Stroke = canvas.Paint{Color: routeColor}
			if r.Path.Degraded {
				rs.Stroke = canvas.Paint{Color: degradedColor}
				rs.Dashes = []float64{f.scale, f.scale}
			}
			rs.StrokeWidth = 0.5 * f.scale
			cp := &canvas.Path{}
			for i, p := range pts {
				if i == 0 {
					cp.MoveTo(f.at(p))
				} else {
					cp.LineTo(f.at(p))
				}
			}
			cr.RenderPath(cp, rs, canvas.Identity)
		}
	}

	if r.Position != nil && r.Position.Floor == r.Floor.Floor {
		x, y := f.at(r.Position.Point)
		if r.Accuracy > 0 {
			as := canvas.DefaultStyle
			as.Fill = canvas.Paint{Color: color.RGBA{15, 40, 110, 60}}
			as.Stroke = canvas.Paint{Color: canvas.Transparent}
			cr.RenderPath(canvas.Circle(r.Accuracy*f.scale).Translate(x, y), as, canvas.Identity)
		}
		ps := canvas.DefaultStyle
		ps.Fill = canvas.Paint{Color: positionColor}
		ps.Stroke = canvas.Paint{Color: canvas.White}
		ps.StrokeWidth = 0.2 * f.scale
		cr.RenderPath(canvas.Circle(f.scale).Translate(x, y), ps, canvas.Identity)
	}
}

func nodeFill(n NavNode) color.RGBA {
	switch {
	case !n.Traversable():
		return obstacleColor
	case n.Type.IsTransition():
		return transitionColor
	default:
		return nodeColor
	}
}

// drawLabels writes node ids next to each node in pixel space
func (r *Renderer) drawLabels(img draw.Image, f frame) {
	dpmm := r.Resolution.DPMM()
	h := img.Bounds().Dy()
	for _, n := range r.Floor.Nodes {
		x, y := f.at(n.Position)
		px := int(x*dpmm) + 4
		py := h - int(y*dpmm) - 4
		drawText(img, px, py, n.ID, labelColor)
	}
}

func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
