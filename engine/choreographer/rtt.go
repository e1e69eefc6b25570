package choreographer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
)

// renderToTextureAndDisplay copies the finished frame in input to the render-to-texture target
// and to the display.
func (c *choreographer) renderToTextureAndDisplay(input device.RenderTarget) error {
	rtt := c.targets.RenderToTexture
	if rtt == nil || c.blitPost == nil {
		return fmt.Errorf("%w: render-to-texture target", ErrInconsistentTargets)
	}

	if err := input.BlitColor(rtt, true); err != nil {
		return fmt.Errorf("choreographer: render-to-texture copy: %w", err)
	}
	if c.rttObserver != nil {
		c.rttObserver(rtt.Texture(0))
	}

	// The display is multisampled, so it is written through a shader instead of a copy.
	if err := c.blitPost.Blit([]device.Texture{input.Texture(0)}, c.dev.Display()); err != nil {
		return fmt.Errorf("choreographer: display blit: %w", err)
	}
	if c.rttCallback != nil {
		c.rttCallback()
	}
	return nil
}

func (c *choreographer) SetRenderToTextureObserver(observer func(device.Texture)) {
	c.rttObserver = observer
}

func (c *choreographer) SetRenderToTextureCallback(callback func()) {
	c.rttCallback = callback
}

func (c *choreographer) SetRenderTexture(tex device.Texture) error {
	if tex == nil {
		c.renderTexture = nil
		return nil
	}
	if c.targets.RenderToTexture == nil {
		return ErrRenderToTextureUnavailable
	}
	if err := c.targets.RenderToTexture.AttachTexture(tex, 0); err != nil {
		return fmt.Errorf("choreographer: attach render texture: %w", err)
	}
	c.renderTexture = tex
	return nil
}
