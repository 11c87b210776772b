package gldevice

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// VertexSource is the built-in vertex stage every pipeline is linked with.
// Attribute locations follow gpu.VertexLayout and gpu.InstanceLayout; the
// instance matrix takes locations 4 to 7.
const VertexSource = `#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aUV;
layout (location = 2) in vec3 aNormal;
layout (location = 3) in vec3 iColor;
layout (location = 4) in mat4 iModel;

uniform mat4 uViewProj;

out vec3 vWorldPos;
out vec3 vNormal;
out vec2 vUV;
out vec3 vColor;

void main() {
    vec4 world = iModel * vec4(aPos, 1.0);
    vWorldPos = world.xyz;
    vNormal = mat3(iModel) * aNormal;
    vUV = aUV.xy;
    vColor = iColor;
    gl_Position = uViewProj * world;
}
`

// FragmentSource is the default fragment stage: diffuse map times material
// color times instance color, with one directional light.
const FragmentSource = `#version 410 core

in vec3 vWorldPos;
in vec3 vNormal;
in vec2 vUV;
in vec3 vColor;

layout (std140) uniform Material {
    vec4 color;
    vec4 specular;
    vec4 params[2];
} uMaterial;

uniform sampler2D uDiffuse;
uniform vec3 uLightDir;
uniform vec3 uEye;

out vec4 FragColor;

void main() {
    vec3 n = normalize(vNormal);
    vec3 l = normalize(-uLightDir);
    vec3 v = normalize(uEye - vWorldPos);
    vec3 h = normalize(l + v);

    vec3 base = texture(uDiffuse, vUV).rgb * uMaterial.color.rgb * vColor;
    float diffuse = max(dot(n, l), 0.0);
    float spec = pow(max(dot(n, h), 0.0), 32.0) * uMaterial.specular.w;

    FragColor = vec4(base * (0.2 + 0.8 * diffuse) + uMaterial.specular.rgb * spec, uMaterial.color.a);
}
`

// Material block and diffuse map bindings used by every fragment stage.
const (
	materialBlock   = "Material"
	materialBinding = 0
	diffuseUnit     = 0
)

// linkProgram links the vertex and fragment shaders into a program.
func linkProgram(vert, frag uint32) (uint32, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, vert)
	gl.AttachShader(program, frag)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", gl.GoStr(&log[0]))
	}

	gl.DetachShader(program, vert)
	gl.DetachShader(program, frag)
	return program, nil
}

// compileShader compiles a single shader of the given type.
func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, gl.GoStr(&log[0]))
	}

	return shader, nil
}

// uniform returns the location of name, or -1 when the program does not
// use it. Setting location -1 is a no-op in GL.
func uniform(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, gl.Str(name+"\x00"))
}

// bindMaterialBlock points the program's material block at the shared
// binding point, if the program declares one.
func bindMaterialBlock(program uint32) {
	idx := gl.GetUniformBlockIndex(program, gl.Str(materialBlock+"\x00"))
	if idx != gl.INVALID_INDEX {
		gl.UniformBlockBinding(program, idx, materialBinding)
	}
}
